package api

import (
	"errors"
	"net/http"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/httputil"
	"github.com/campushq/campus/pkg/middleware"
	"github.com/campushq/campus/pkg/schools"
)

// handleRegisterSchool handles POST /api/v1/schools/register. Anonymous and
// rate limited; the school lands in pending status until a platform operator
// validates it.
func (s *Server) handleRegisterSchool(w http.ResponseWriter, r *http.Request) {
	var req schools.RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	resp, err := s.schools.Register(r.Context(), req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, resp)
}

type validateSchoolRequest struct {
	Approved        bool   `json:"approved"`
	RejectionReason string `json:"rejection_reason"`
}

// handleValidateSchool handles POST /api/v1/schools/{id}/validate. Approving
// activates the founding director's membership and account in the same call.
func (s *Server) handleValidateSchool(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req validateSchoolRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httputil.WriteDomainError(w, apperr.Authentication("authentication required"))
		return
	}

	var school *schools.School
	var err error
	if req.Approved {
		school, err = s.schools.Approve(r.Context(), schoolID, identity.UserID)
	} else {
		school, err = s.schools.Reject(r.Context(), schoolID, req.RejectionReason)
	}
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, school)
}

// handleSuspendSchool handles POST /api/v1/schools/{id}/suspend.
func (s *Server) handleSuspendSchool(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	school, err := s.schools.Suspend(r.Context(), schoolID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, school)
}

// handleListSchools handles GET /api/v1/schools with an optional ?status=
// filter.
func (s *Server) handleListSchools(w http.ResponseWriter, r *http.Request) {
	var status *schools.SchoolStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed := schools.SchoolStatus(raw)
		if !parsed.Valid() {
			httputil.WriteDomainError(w, apperr.Validation("unknown school status"))
			return
		}
		status = &parsed
	}

	list, err := s.schools.List(r.Context(), status)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, list)
}

// handleCurrentSchool handles GET /api/v1/school. The resolver has already
// loaded the school for the tenant named by the X-School-ID header.
func (s *Server) handleCurrentSchool(w http.ResponseWriter, r *http.Request) {
	school, ok := middleware.SchoolFrom(r.Context())
	if !ok {
		httputil.WriteInternalError(w, errors.New("school missing from request context"))
		return
	}

	httputil.WriteSuccess(w, school)
}
