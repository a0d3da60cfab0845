package members

import (
	"time"

	"github.com/campushq/campus/pkg/rbac"
)

// Membership joins a user, a school, and a role. A user holds at most one
// role per school. The membership grants access only when IsActive and
// IsValidated are both true and the school itself is validated.
type Membership struct {
	ID          int64 `json:"id"`
	UserID      int64 `json:"user_id"`
	SchoolID    int64 `json:"school_id"`
	RoleID      int64 `json:"role_id"`
	IsActive    bool  `json:"is_active"`
	IsValidated bool  `json:"is_validated"`

	// Invitation metadata, present while the membership is pending
	// acceptance.
	InvitationToken     *string    `json:"-"`
	InvitationExpiresAt *time.Time `json:"invitation_expires_at,omitempty"`
	InvitedBy           *int64     `json:"invited_by,omitempty"`

	JoinedAt  *time.Time `json:"joined_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Role is populated by lookups that resolve the membership for access
	// checks or listings.
	Role *rbac.Role `json:"role,omitempty"`

	// Denormalized user fields populated by school-scoped listings.
	UserEmail     string `json:"user_email,omitempty"`
	UserFirstName string `json:"user_first_name,omitempty"`
	UserLastName  string `json:"user_last_name,omitempty"`
}

// GrantsAccess reports whether the membership itself permits tenant access.
// School status is checked separately by the school resolver.
func (m *Membership) GrantsAccess() bool {
	return m.IsActive && m.IsValidated
}
