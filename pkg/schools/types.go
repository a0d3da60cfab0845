package schools

import (
	"time"
)

// SchoolStatus represents a school's lifecycle state.
type SchoolStatus string

const (
	// StatusPending is the initial state set at registration.
	StatusPending SchoolStatus = "pending"
	// StatusValidated means the registration was approved. Only validated
	// schools are accessible to their members.
	StatusValidated SchoolStatus = "validated"
	// StatusRejected means the registration was denied. Terminal.
	StatusRejected SchoolStatus = "rejected"
	// StatusSuspended is an administrative state reachable from validated.
	// A suspended school is inaccessible, same as pending or rejected.
	StatusSuspended SchoolStatus = "suspended"
)

// Valid reports whether s is one of the known lifecycle states.
func (s SchoolStatus) Valid() bool {
	switch s {
	case StatusPending, StatusValidated, StatusRejected, StatusSuspended:
		return true
	}
	return false
}

// AllowsAccess reports whether members of a school in this state may reach
// tenant-scoped operations.
func (s SchoolStatus) AllowsAccess() bool {
	return s == StatusValidated
}

// School represents a tenant. The founding administrator is recorded through
// the director contact fields.
type School struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`

	DirectorFirstName string `json:"director_first_name"`
	DirectorLastName  string `json:"director_last_name"`
	DirectorEmail     string `json:"director_email"`
	DirectorPhone     string `json:"director_phone"`

	Status          SchoolStatus `json:"status"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	ValidatedAt     *time.Time   `json:"validated_at,omitempty"`
	ValidatedBy     *int64       `json:"validated_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
