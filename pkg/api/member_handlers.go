package api

import (
	"errors"
	"net/http"

	"github.com/campushq/campus/pkg/httputil"
	"github.com/campushq/campus/pkg/members"
	"github.com/campushq/campus/pkg/middleware"
)

// handleListMembers handles GET /api/v1/members for the resolved school.
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	school, ok := middleware.SchoolFrom(r.Context())
	if !ok {
		httputil.WriteInternalError(w, errors.New("school missing from request context"))
		return
	}

	list, err := s.memberships.List(r.Context(), school.ID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, list)
}

// handleInviteMember handles POST /api/v1/members/invitations. The invited
// user's membership stays dormant until they accept the invitation.
func (s *Server) handleInviteMember(w http.ResponseWriter, r *http.Request) {
	school, ok := middleware.SchoolFrom(r.Context())
	if !ok {
		httputil.WriteInternalError(w, errors.New("school missing from request context"))
		return
	}
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httputil.WriteInternalError(w, errors.New("identity missing from request context"))
		return
	}

	var req members.InviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	membership, err := s.memberships.Invite(r.Context(), school.ID, identity.UserID, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, membership)
}

type updateRoleRequest struct {
	RoleID int64 `json:"role_id"`
}

// handleUpdateMemberRole handles PUT /api/v1/members/{id}/role.
func (s *Server) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	school, ok := middleware.SchoolFrom(r.Context())
	if !ok {
		httputil.WriteInternalError(w, errors.New("school missing from request context"))
		return
	}

	membershipID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req updateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	membership, err := s.memberships.UpdateRole(r.Context(), school.ID, membershipID, req.RoleID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, membership)
}

type updateStatusRequest struct {
	IsActive bool `json:"is_active"`
}

// handleUpdateMemberStatus handles PUT /api/v1/members/{id}/status.
func (s *Server) handleUpdateMemberStatus(w http.ResponseWriter, r *http.Request) {
	school, ok := middleware.SchoolFrom(r.Context())
	if !ok {
		httputil.WriteInternalError(w, errors.New("school missing from request context"))
		return
	}

	membershipID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	membership, err := s.memberships.SetActive(r.Context(), school.ID, membershipID, req.IsActive)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, membership)
}

// handleRemoveMember handles DELETE /api/v1/members/{id}.
func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	school, ok := middleware.SchoolFrom(r.Context())
	if !ok {
		httputil.WriteInternalError(w, errors.New("school missing from request context"))
		return
	}

	membershipID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.memberships.Remove(r.Context(), school.ID, membershipID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// handleAcceptInvitation handles POST /api/v1/invitations/{token}/accept.
// The invitation token itself is the credential, so the route is anonymous.
func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	token, err := httputil.ParsePathString(r, "token")
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	membership, err := s.memberships.AcceptInvitation(r.Context(), token)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, membership)
}
