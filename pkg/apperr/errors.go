// Package apperr defines the error taxonomy shared by the access-control
// pipeline and the domain services. Every failure surfaced to a caller is one
// of these types; stores wrap driver errors into them at the package boundary.
package apperr

import (
	"errors"
	"net/http"
)

// ValidationError indicates required input is missing or malformed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthenticationError indicates no verified caller identity is present.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// AuthzReason identifies which access-control stage denied the request.
// It is carried on the error for callers and tests; user-facing messages
// stay generic so unauthorized callers cannot probe tenant existence.
type AuthzReason string

const (
	ReasonSchoolAccess      AuthzReason = "school_access"
	ReasonMembershipAccess  AuthzReason = "membership_access"
	ReasonInsufficientGrant AuthzReason = "insufficient_permission"
)

// AuthorizationError indicates the caller is authenticated but denied access.
type AuthorizationError struct {
	Reason AuthzReason
}

func (e *AuthorizationError) Error() string {
	return "access denied"
}

// ConflictError indicates a uniqueness invariant or lifecycle precondition
// was violated on a write.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NotFoundError indicates a referenced entity does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// Constructors

// Validation creates a ValidationError.
func Validation(message string) error {
	return &ValidationError{Message: message}
}

// Authentication creates an AuthenticationError.
func Authentication(message string) error {
	return &AuthenticationError{Message: message}
}

// Authorization creates an AuthorizationError for the given denial reason.
func Authorization(reason AuthzReason) error {
	return &AuthorizationError{Reason: reason}
}

// Conflict creates a ConflictError.
func Conflict(message string) error {
	return &ConflictError{Message: message}
}

// NotFound creates a NotFoundError.
func NotFound(message string) error {
	return &NotFoundError{Message: message}
}

// Predicates

// IsValidation checks if an error is a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsAuthentication checks if an error is an AuthenticationError.
func IsAuthentication(err error) bool {
	var e *AuthenticationError
	return errors.As(err, &e)
}

// IsAuthorization checks if an error is an AuthorizationError.
func IsAuthorization(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e)
}

// AuthorizationReason extracts the denial reason from an AuthorizationError,
// or "" if the error is not one.
func AuthorizationReason(err error) AuthzReason {
	var e *AuthorizationError
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsConflict checks if an error is a ConflictError.
func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// HTTPStatus maps a domain error to its HTTP status code. Unrecognized errors
// map to 500.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsAuthentication(err):
		return http.StatusUnauthorized
	case IsAuthorization(err):
		return http.StatusForbidden
	case IsConflict(err):
		return http.StatusConflict
	case IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
