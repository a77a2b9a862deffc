package sso

import "fmt"

// Error codes attached to AuthError values. Codes are stable identifiers
// for programmatic handling; the messages are user-facing and may change.
const (
	ErrCodeInvalidEmail       = "invalid_email"
	ErrCodeAlreadyRegistered  = "already_registered"
	ErrCodeDuplicateEmail     = "duplicate_email"
	ErrCodeTokenInvalid       = "token_invalid"
	ErrCodeAccountNotFound    = "account_not_found"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeInactiveAccount    = "inactive_account"
	ErrCodeMissingField       = "missing_field"
	ErrCodeFieldTooLong       = "field_too_long"
)

// AuthError is a user-facing error with a stable code and, where it makes
// sense, the form field the error relates to.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// NewAuthError creates a structured auth error.
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

func (e *AuthError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches AuthErrors by code so callers can use errors.Is against the
// package sentinels regardless of how the error was wrapped or rebuilt.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Code == e.Code
}

// Sentinel errors for the signup and signin flows.
//
// ErrTokenInvalid deliberately does not distinguish "never existed",
// "expired" and "wrong value". ErrInvalidCredentials deliberately does not
// distinguish "no such account" from "wrong password". ErrInactiveAccount
// is distinguishable: a disabled account is a UI-visible condition, not an
// enumeration risk.
var (
	ErrInvalidEmail       = NewAuthError(ErrCodeInvalidEmail, "Enter a valid email address.", "email")
	ErrAlreadyRegistered  = NewAuthError(ErrCodeAlreadyRegistered, "That email is already registered.", "email")
	ErrDuplicateEmail     = NewAuthError(ErrCodeDuplicateEmail, "That email is already registered.", "email")
	ErrTokenInvalid       = NewAuthError(ErrCodeTokenInvalid, "This link is invalid or has expired.", "")
	ErrAccountNotFound    = NewAuthError(ErrCodeAccountNotFound, "Account not found.", "email")
	ErrInvalidCredentials = NewAuthError(ErrCodeInvalidCredentials, "Email and password don't match.", "password")
	ErrInactiveAccount    = NewAuthError(ErrCodeInactiveAccount, "That account is inactive.", "")
)
