package dto

import (
	"errors"
	"net/http"

	"github.com/tresoria/backend/internal/domain/shared"
)

// Codes used for failures raised by the HTTP layer itself, before any
// domain code runs
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeValidation   = "REQUEST_VALIDATION_FAILED"
	ErrCodeInvalidJSON  = "INVALID_JSON"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// StatusForError maps a classified domain error onto an HTTP status.
// Validation failures are 422s like the treasury backend's; guard refusals
// are conflicts except for the permission case, which is a plain 403.
func StatusForError(err error) int {
	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Kind {
	case shared.KindValidation:
		if domainErr.Code == "NOT_FOUND" || domainErr.Code == "SHEET_NOT_FOUND" {
			return http.StatusNotFound
		}
		return http.StatusUnprocessableEntity
	case shared.KindGuard:
		if domainErr.Code == "PERMISSION_DENIED" {
			return http.StatusForbidden
		}
		return http.StatusConflict
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindAuth:
		return http.StatusUnauthorized
	case shared.KindTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
