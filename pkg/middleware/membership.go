package middleware

import (
	"net/http"
	"time"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/contextkeys"
	"github.com/campushq/campus/pkg/httputil"
	"github.com/campushq/campus/pkg/members"
	"github.com/campushq/campus/pkg/observability"
)

// MembershipValidator confirms the authenticated caller holds an active,
// validated membership in the school resolved by SchoolResolver and attaches
// the membership, including its role, for downstream permission checks. It
// must run after SchoolResolver.
func MembershipValidator(store members.Store, metrics *observability.Metrics, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			identity, ok := IdentityFrom(r.Context())
			if !ok {
				httputil.WriteDomainError(w, apperr.Authentication("authentication required"))
				return
			}
			school, ok := SchoolFrom(r.Context())
			if !ok {
				httputil.WriteDomainError(w, apperr.Validation("School ID is required"))
				return
			}

			membership, err := store.GetByUserAndSchool(r.Context(), identity.UserID, school.ID)
			if err != nil {
				if apperr.IsNotFound(err) {
					recordDecision(metrics, observability.StageMembershipValidator, false, started)
					httputil.WriteDomainError(w, apperr.Authorization(apperr.ReasonMembershipAccess))
					return
				}
				logger.WithError(err).Error("membership lookup failed")
				httputil.WriteDomainError(w, err)
				return
			}
			if !membership.GrantsAccess() {
				logger.WithFields(map[string]interface{}{
					"school_id":    school.ID,
					"user_id":      identity.UserID,
					"is_active":    membership.IsActive,
					"is_validated": membership.IsValidated,
				}).Debug("denied access to dormant membership")
				recordDecision(metrics, observability.StageMembershipValidator, false, started)
				httputil.WriteDomainError(w, apperr.Authorization(apperr.ReasonMembershipAccess))
				return
			}

			recordDecision(metrics, observability.StageMembershipValidator, true, started)
			ctx := contextkeys.WithMembership(r.Context(), membership)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
