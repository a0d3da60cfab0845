// Package auth defines the caller identity consumed by the access-control
// pipeline and the opaque API token format used to establish it.
//
// Credential issuance (login, password verification, email flows) lives
// outside this service; everything downstream of the auth middleware consumes
// only the resulting Identity.
package auth

import "context"

// Identity is the verified caller identity attached to a request.
type Identity struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	// RoleHint is an advisory label from the credential (e.g. "platform_admin").
	// Tenant-scoped authorization never trusts it; the membership validator and
	// permission enforcer re-derive the effective role from the database.
	RoleHint string `json:"role_hint,omitempty"`
}

// VerifyFunc validates a bearer credential and returns the caller identity.
type VerifyFunc func(ctx context.Context, token string) (*Identity, error)
