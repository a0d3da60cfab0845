package api

import (
	"net/http"

	"github.com/campushq/campus/pkg/rbac"
)

// Route is the typed registration record for one endpoint. The access
// requirements live here rather than inside the handlers so the full policy
// surface is auditable in one place.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc

	// RequiredPermission, when non-empty, adds the permission enforcer for
	// this tag. Routes that only need a validated membership leave it empty.
	RequiredPermission rbac.Tag

	// TenantScoped routes run the school resolver and membership validator
	// and therefore require the X-School-ID header plus credentials.
	TenantScoped bool

	// RequireAuth demands an authenticated identity without tenant scoping.
	// Used by the platform lifecycle endpoints.
	RequireAuth bool

	// RateLimited routes go through the registration rate limiter.
	RateLimited bool
}

func (s *Server) routes() []Route {
	return []Route{
		// School lifecycle. Registration and invitation acceptance are the
		// only anonymous endpoints.
		{
			Method:      http.MethodPost,
			Path:        "/api/v1/schools/register",
			Handler:     s.handleRegisterSchool,
			RateLimited: true,
		},
		{
			Method:      http.MethodPost,
			Path:        "/api/v1/schools/{id}/validate",
			Handler:     s.handleValidateSchool,
			RequireAuth: true,
		},
		{
			Method:      http.MethodPost,
			Path:        "/api/v1/schools/{id}/suspend",
			Handler:     s.handleSuspendSchool,
			RequireAuth: true,
		},
		{
			Method:      http.MethodGet,
			Path:        "/api/v1/schools",
			Handler:     s.handleListSchools,
			RequireAuth: true,
		},
		{
			Method:       http.MethodGet,
			Path:         "/api/v1/school",
			Handler:      s.handleCurrentSchool,
			TenantScoped: true,
		},

		// Membership management inside a school.
		{
			Method:             http.MethodGet,
			Path:               "/api/v1/members",
			Handler:            s.handleListMembers,
			TenantScoped:       true,
			RequiredPermission: rbac.TagViewUsers,
		},
		{
			Method:             http.MethodPost,
			Path:               "/api/v1/members/invitations",
			Handler:            s.handleInviteMember,
			TenantScoped:       true,
			RequiredPermission: rbac.TagInviteUsers,
		},
		{
			Method:             http.MethodPut,
			Path:               "/api/v1/members/{id}/role",
			Handler:            s.handleUpdateMemberRole,
			TenantScoped:       true,
			RequiredPermission: rbac.TagManageUsers,
		},
		{
			Method:             http.MethodPut,
			Path:               "/api/v1/members/{id}/status",
			Handler:            s.handleUpdateMemberStatus,
			TenantScoped:       true,
			RequiredPermission: rbac.TagManageUsers,
		},
		{
			Method:             http.MethodDelete,
			Path:               "/api/v1/members/{id}",
			Handler:            s.handleRemoveMember,
			TenantScoped:       true,
			RequiredPermission: rbac.TagManageUsers,
		},
		{
			Method:  http.MethodPost,
			Path:    "/api/v1/invitations/{token}/accept",
			Handler: s.handleAcceptInvitation,
		},

		// Role and permission catalogs for a school.
		{
			Method:             http.MethodGet,
			Path:               "/api/v1/roles",
			Handler:            s.handleListRoles,
			TenantScoped:       true,
			RequiredPermission: rbac.TagViewRoles,
		},
		{
			Method:             http.MethodGet,
			Path:               "/api/v1/permissions",
			Handler:            s.handleListPermissions,
			TenantScoped:       true,
			RequiredPermission: rbac.TagViewRoles,
		},
	}
}
