package shared

import "errors"

// ErrorKind classifies a DomainError into the failure taxonomy used across
// the treasury back office. Validation and guard errors are resolved locally
// before any network call; the remaining kinds originate from the treasury
// backend and are passed through with their message intact.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation" // failed invariant or business rule
	KindGuard      ErrorKind = "guard"      // illegal transition, missing permission or reference
	KindConflict   ErrorKind = "conflict"   // backend 409: duplicate reference, stale allocation
	KindTransport  ErrorKind = "transport"  // network, timeout, 5xx; retryable
	KindAuth       ErrorKind = "auth"       // backend 401; session must be re-established
)

// DomainError represents a classified domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error of the given kind
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation-kind domain error
func NewValidationError(code, message string) *DomainError {
	return NewDomainError(KindValidation, code, message)
}

// NewGuardError creates a guard-kind domain error
func NewGuardError(code, message string) *DomainError {
	return NewDomainError(KindGuard, code, message)
}

// NewConflictError creates a conflict-kind domain error
func NewConflictError(code, message string) *DomainError {
	return NewDomainError(KindConflict, code, message)
}

// NewTransportError creates a transport-kind domain error
func NewTransportError(code, message string) *DomainError {
	return NewDomainError(KindTransport, code, message)
}

// NewAuthError creates an auth-kind domain error
func NewAuthError(code, message string) *DomainError {
	return NewDomainError(KindAuth, code, message)
}

// KindOf returns the kind of err, or an empty kind for non-domain errors
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// CodeOf returns the code of err, or an empty string for non-domain errors
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsGuardError reports whether err is a guard failure
func IsGuardError(err error) bool {
	return KindOf(err) == KindGuard
}

// IsValidationError reports whether err is a validation failure
func IsValidationError(err error) bool {
	return KindOf(err) == KindValidation
}

// IsAuthError reports whether err requires re-authentication
func IsAuthError(err error) bool {
	return KindOf(err) == KindAuth
}

// IsRetryable reports whether the operation may be retried at the user's
// discretion. Only transport failures are retryable; conflicts and auth
// failures are not.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransport
}

// Common domain errors
var (
	ErrNotFound         = NewDomainError(KindValidation, "NOT_FOUND", "Resource not found")
	ErrAlreadyExists    = NewConflictError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput     = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrPermissionDenied = NewGuardError("PERMISSION_DENIED", "Not allowed to perform this action")
	ErrInvalidState     = NewGuardError("INVALID_STATE", "Operation not allowed in current state")
	ErrSessionExpired   = NewAuthError("SESSION_EXPIRED", "Session is no longer valid")
)
