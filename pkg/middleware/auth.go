package middleware

import (
	"net/http"
	"strings"

	"github.com/campushq/campus/pkg/auth"
	"github.com/campushq/campus/pkg/contextkeys"
	"github.com/campushq/campus/pkg/httputil"
	"github.com/campushq/campus/pkg/observability"
)

// Authentication verifies a bearer credential when one is presented and
// attaches the resulting identity to the request context. Requests without
// credentials pass through unauthenticated; whether an identity is required
// is decided by the downstream stages, which keeps the school-identifier
// presence check ahead of the authentication check.
func Authentication(verify auth.VerifyFunc, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := verify(r.Context(), token)
			if err != nil {
				logger.WithError(err).Debug("token verification failed")
				httputil.WriteDomainError(w, err)
				return
			}

			ctx := contextkeys.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects requests that carry no authenticated identity. It
// guards endpoints that need a caller but are not school-scoped, such as the
// school approval endpoint.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
