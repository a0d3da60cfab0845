package api

import (
	"errors"
	"net/http"

	"github.com/campushq/campus/pkg/httputil"
	"github.com/campushq/campus/pkg/middleware"
)

// handleListRoles handles GET /api/v1/roles. Returns global roles plus the
// roles owned by the resolved school.
func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	school, ok := middleware.SchoolFrom(r.Context())
	if !ok {
		httputil.WriteInternalError(w, errors.New("school missing from request context"))
		return
	}

	roles, err := s.roles.ListRoles(r.Context(), &school.ID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, roles)
}

// handleListPermissions handles GET /api/v1/permissions.
func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := s.roles.ListPermissions(r.Context())
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, permissions)
}
