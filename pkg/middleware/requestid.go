package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/campushq/campus/pkg/contextkeys"
)

// RequestIDHeader carries the request ID on responses and, when supplied by
// a trusted proxy, on requests.
const RequestIDHeader = "X-Request-ID"

// RequestID attaches a request ID to the context and echoes it on the
// response, generating one when the request carries none.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
