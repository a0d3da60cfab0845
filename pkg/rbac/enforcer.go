package rbac

import (
	"github.com/campushq/campus/pkg/apperr"
)

// Check verifies that the role grants the required tag. The wildcard is
// honored before any exact match. A nil role always denies.
func Check(role *Role, required Tag) error {
	if role != nil && role.HasPermission(required) {
		return nil
	}
	return apperr.Authorization(apperr.ReasonInsufficientGrant)
}
