package middleware

import (
	"net/http"
	"time"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/httputil"
	"github.com/campushq/campus/pkg/observability"
	"github.com/campushq/campus/pkg/rbac"
)

// RequirePermission enforces the permission tag an operation declares. It
// must run after MembershipValidator. Operations that declare no tag skip
// this stage entirely; membership alone is the bar for them.
func RequirePermission(tag rbac.Tag, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			membership, ok := MembershipFrom(r.Context())
			if !ok {
				httputil.WriteDomainError(w, apperr.Authorization(apperr.ReasonMembershipAccess))
				return
			}

			if err := rbac.Check(membership.Role, tag); err != nil {
				recordDecision(metrics, observability.StagePermissionEnforcer, false, started)
				httputil.WriteDomainError(w, err)
				return
			}

			recordDecision(metrics, observability.StagePermissionEnforcer, true, started)
			next.ServeHTTP(w, r)
		})
	}
}
