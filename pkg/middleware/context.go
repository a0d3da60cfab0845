package middleware

import (
	"context"

	"github.com/campushq/campus/pkg/auth"
	"github.com/campushq/campus/pkg/contextkeys"
	"github.com/campushq/campus/pkg/members"
	"github.com/campushq/campus/pkg/schools"
)

// IdentityFrom returns the authenticated caller identity attached by
// Authentication, if any.
func IdentityFrom(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(contextkeys.IdentityKey).(*auth.Identity)
	return identity, ok
}

// SchoolFrom returns the school resolved by SchoolResolver, if any.
func SchoolFrom(ctx context.Context) (*schools.School, bool) {
	school, ok := ctx.Value(contextkeys.SchoolKey).(*schools.School)
	return school, ok
}

// MembershipFrom returns the membership attached by MembershipValidator, if
// any.
func MembershipFrom(ctx context.Context) (*members.Membership, bool) {
	membership, ok := ctx.Value(contextkeys.MembershipKey).(*members.Membership)
	return membership, ok
}

// RequestIDFrom returns the request ID attached by RequestID, if any.
func RequestIDFrom(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(contextkeys.RequestIDKey).(string)
	return requestID, ok
}
