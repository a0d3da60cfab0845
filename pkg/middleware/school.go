package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/contextkeys"
	"github.com/campushq/campus/pkg/httputil"
	"github.com/campushq/campus/pkg/observability"
	"github.com/campushq/campus/pkg/schools"
)

// SchoolIDHeader carries the tenant identifier on school-scoped requests.
const SchoolIDHeader = "X-School-ID"

// SchoolResolver extracts the school identifier from the request, confirms
// the caller is authenticated, and confirms the school exists and is
// validated. The identifier presence check runs before the authentication
// check: a request without a school ID gets a validation failure regardless
// of its authentication state.
//
// Denials never reveal whether the school exists or what state it is in.
func SchoolResolver(store schools.Store, metrics *observability.Metrics, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			header := r.Header.Get(SchoolIDHeader)
			if header == "" {
				recordDecision(metrics, observability.StageSchoolResolver, false, started)
				httputil.WriteDomainError(w, apperr.Validation("School ID is required"))
				return
			}
			schoolID, err := strconv.ParseInt(header, 10, 64)
			if err != nil {
				recordDecision(metrics, observability.StageSchoolResolver, false, started)
				httputil.WriteDomainError(w, apperr.Validation("School ID must be a number"))
				return
			}

			identity, ok := IdentityFrom(r.Context())
			if !ok {
				recordDecision(metrics, observability.StageSchoolResolver, false, started)
				httputil.WriteDomainError(w, apperr.Authentication("authentication required"))
				return
			}

			school, err := store.Get(r.Context(), schoolID)
			if err != nil {
				if apperr.IsNotFound(err) {
					recordDecision(metrics, observability.StageSchoolResolver, false, started)
					httputil.WriteDomainError(w, apperr.Authorization(apperr.ReasonSchoolAccess))
					return
				}
				logger.WithError(err).Error("school lookup failed")
				httputil.WriteDomainError(w, err)
				return
			}
			if !school.Status.AllowsAccess() {
				logger.WithFields(map[string]interface{}{
					"school_id": schoolID,
					"status":    school.Status,
					"user_id":   identity.UserID,
				}).Debug("denied access to non-validated school")
				recordDecision(metrics, observability.StageSchoolResolver, false, started)
				httputil.WriteDomainError(w, apperr.Authorization(apperr.ReasonSchoolAccess))
				return
			}

			recordDecision(metrics, observability.StageSchoolResolver, true, started)
			ctx := contextkeys.WithSchool(r.Context(), school)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func recordDecision(metrics *observability.Metrics, stage string, allowed bool, started time.Time) {
	if metrics != nil {
		metrics.RecordAccessDecision(stage, allowed, time.Since(started))
	}
}
