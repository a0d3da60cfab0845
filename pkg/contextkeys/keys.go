// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *auth.Identity
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: school resolver, membership validator, all protected endpoints
	// Type: *auth.Identity
	IdentityKey Key = "identity"

	// SchoolKey contains *schools.School
	// Set by: middleware.SchoolResolver (pkg/middleware/school.go)
	// Required by: membership validator, school-scoped endpoints
	// Type: *schools.School
	SchoolKey Key = "school"

	// MembershipKey contains *members.Membership with its role populated
	// Set by: middleware.MembershipValidator (pkg/middleware/membership.go)
	// Required by: permission enforcement, member-scoped endpoints
	// Type: *members.Membership
	MembershipKey Key = "membership"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: logger, response headers
	// Type: string
	RequestIDKey Key = "request_id"
)

// Helper functions for type-safe context operations

// WithIdentity adds the caller identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithSchool adds the resolved school to the context
func WithSchool(ctx context.Context, school interface{}) context.Context {
	return context.WithValue(ctx, SchoolKey, school)
}

// WithMembership adds the validated membership to the context
func WithMembership(ctx context.Context, membership interface{}) context.Context {
	return context.WithValue(ctx, MembershipKey, membership)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}
