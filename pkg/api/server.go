package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campushq/campus/pkg/auth"
	"github.com/campushq/campus/pkg/members"
	"github.com/campushq/campus/pkg/middleware"
	"github.com/campushq/campus/pkg/observability"
	"github.com/campushq/campus/pkg/rbac"
	"github.com/campushq/campus/pkg/schools"
)

// Server wires the HTTP surface: the access-control pipeline, the school
// lifecycle endpoints, and the school-scoped membership and role endpoints.
type Server struct {
	router *mux.Router

	schools     *schools.Service
	memberships *members.Service
	roles       rbac.Store

	schoolStore     schools.Store
	membershipStore members.Store

	verify  auth.VerifyFunc
	limiter *middleware.RateLimiter
	logger  *observability.Logger
	metrics *observability.Metrics
}

// Deps carries the collaborators the server needs.
type Deps struct {
	Schools     *schools.Service
	Memberships *members.Service
	Roles       rbac.Store

	// SchoolStore and MembershipStore back the resolver and validator
	// middleware directly; the services above own the write paths.
	SchoolStore     schools.Store
	MembershipStore members.Store

	Verify      auth.VerifyFunc
	RateLimiter *middleware.RateLimiter
	Logger      *observability.Logger
	Metrics     *observability.Metrics
}

// NewServer creates a Server and builds its router from the route table.
func NewServer(deps Deps) *Server {
	s := &Server{
		router:          mux.NewRouter(),
		schools:         deps.Schools,
		memberships:     deps.Memberships,
		roles:           deps.Roles,
		schoolStore:     deps.SchoolStore,
		membershipStore: deps.MembershipStore,
		verify:          deps.Verify,
		limiter:         deps.RateLimiter,
		logger:          deps.Logger,
		metrics:         deps.Metrics,
	}

	s.router.Use(middleware.RequestID)
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	s.router.Use(middleware.Authentication(s.verify, s.logger))

	for _, route := range s.routes() {
		s.mount(route)
	}

	return s
}

// Router returns the fully assembled handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// mount wraps a route's handler with the stages its table entry declares and
// registers it. Tenant-scoped routes get the resolver and validator; the
// permission stage is added only when the route names a tag.
func (s *Server) mount(route Route) {
	var handler http.Handler = route.Handler

	if route.RequiredPermission != "" {
		handler = middleware.RequirePermission(route.RequiredPermission, s.metrics)(handler)
	}
	if route.TenantScoped {
		handler = middleware.MembershipValidator(s.membershipStore, s.metrics, s.logger)(handler)
		handler = middleware.SchoolResolver(s.schoolStore, s.metrics, s.logger)(handler)
	} else if route.RequireAuth {
		handler = middleware.RequireIdentity(handler)
	}
	if route.RateLimited && s.limiter != nil {
		handler = s.limiter.Handler(handler)
	}

	s.router.Handle(route.Path, handler).Methods(route.Method)
}
