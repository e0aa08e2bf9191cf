// Package apperr defines the structured application errors raised by every
// guard component. The code taxonomy is closed and flat; callers branch on
// codes, never on message text.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure condition a caller can act on.
type Code string

// The closed error taxonomy. New failure conditions require a new constant
// here, not ad-hoc string codes at call sites.
const (
	CodeUnauthenticated       Code = "UNAUTHENTICATED"
	CodeUnauthorized          Code = "UNAUTHORIZED"
	CodeForbidden             Code = "FORBIDDEN"
	CodeNotFound              Code = "NOT_FOUND"
	CodeAlreadyExists         Code = "ALREADY_EXISTS"
	CodeConflict              Code = "CONFLICT"
	CodeInvalidInput          Code = "INVALID_INPUT"
	CodeValidationFailed      Code = "VALIDATION_FAILED"
	CodeInsufficientInventory Code = "INSUFFICIENT_INVENTORY"
	CodeOrderNotModifiable    Code = "ORDER_NOT_MODIFIABLE"
	CodePaymentFailed         Code = "PAYMENT_FAILED"
	CodeRateLimited           Code = "RATE_LIMITED"
	CodeInternal              Code = "INTERNAL_ERROR"
	CodeExternalService       Code = "EXTERNAL_SERVICE_ERROR"
)

// Error is the uniform failure shape every guard raises. Details carries
// optional machine-readable context (e.g. retryAfter on RATE_LIMITED).
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

// New constructs a structured error. Construction is pure; no I/O happens here.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a structured error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches machine-readable details and returns the error for
// chaining. The map is stored as-is; callers must not mutate it afterwards.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Detail returns a single detail value by key.
func (e *Error) Detail(key string) (any, bool) {
	v, ok := e.Details[key]
	return v, ok
}

// MarshalJSON flattens details into the top-level object, producing the wire
// shape {code, message, ...details}. The code and message keys always win
// over colliding detail keys.
func (e *Error) MarshalJSON() ([]byte, error) {
	payload := make(map[string]any, len(e.Details)+2)
	for k, v := range e.Details {
		payload[k] = v
	}
	payload["code"] = e.Code
	payload["message"] = e.Message
	return json.Marshal(payload)
}

// CodeOf extracts the structured code from an error chain. The second return
// is false for plain errors, which boundaries must surface as opaque
// internal failures.
func CodeOf(err error) (Code, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given structured code.
func IsCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// HTTPStatus maps a code to the HTTP status the edge responds with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeUnauthorized, CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict, CodeOrderNotModifiable:
		return http.StatusConflict
	case CodeInvalidInput, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeInsufficientInventory:
		return http.StatusUnprocessableEntity
	case CodePaymentFailed:
		return http.StatusPaymentRequired
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
