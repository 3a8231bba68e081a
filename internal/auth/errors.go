package auth

import (
	"errors"
	"fmt"
)

// Verification and construction failures. Codec errors are wrapped so
// callers can match with errors.Is.
var (
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrTokenExpired         = errors.New("token has expired")
	ErrIssuerMismatch       = errors.New("invalid token issuer")
	ErrUnsupportedTokenType = errors.New("invalid token type")
	ErrUnsupportedAuthType  = errors.New("unsupported authentication type")
	ErrMissingSecret        = errors.New("jwt secret key is required")
)

// Kind classifies an authentication error for status-code mapping.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindUnauthorized    Kind = "unauthorized"
	KindRateLimited     Kind = "rate_limited"
	KindInternal        Kind = "internal"
)

// Error is the failure result of a strategy. Strategies never panic and
// never let raw token-library errors escape; the dispatcher owns the
// mapping from Kind to HTTP status.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthenticated builds a missing/invalid-credential error.
func Unauthenticated(code, message string, cause error) *Error {
	return &Error{Kind: KindUnauthenticated, Code: code, Message: message, Err: cause}
}

// Unauthorized builds a valid-credentials/insufficient-rights error.
func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

// Internal builds an unexpected-failure error.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: message, Err: cause}
}
