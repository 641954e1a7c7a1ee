package sessiongate

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthorized is returned when a credential, token, or session fails verification.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned for a wrong password or an unknown email.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by collaborators when a user id or email has no row.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned when registration hits an existing email.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountDisabled is returned when the credential is valid but the account is disabled.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrPermissionDenied is returned when a required attribute is missing.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrRoleNotFound is returned by collaborators when a role id or user mapping has no row.
	ErrRoleNotFound = errors.New("role not found")
	// ErrSessionNotFound is returned when the ephemeral record is absent or its token does not match.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenInvalid is returned for malformed, expired, or tampered tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrPasswordResetInvalid covers consumed, expired, and mismatched reset tokens alike.
	ErrPasswordResetInvalid = errors.New("invalid or expired token")
	// ErrPasswordPolicy is returned when a new password does not meet the length policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrRateLimited is returned when an (ip, path) pair is blocked.
	ErrRateLimited = errors.New("too many failed attempts")
	// ErrSessionCreationFailed is returned when a session cannot be written.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionInvalidationFailed is returned when revocation could not reach the stores.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrStoreUnavailable is returned when a backing store call fails or times out.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidInput is returned for requests missing required fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEngineNotReady is returned when an Engine is used before Build wired it.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// StatusCode maps an engine error to the HTTP status the client sees.
// ErrUserNotFound and ErrSessionNotFound deliberately map to 401: a token that
// outlived its user or session is indistinguishable from a bad token.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrAccountDisabled),
		errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRoleNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrPasswordResetInvalid):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing message for err. Authentication
// failures collapse into one message per family so callers cannot tell which
// check failed.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "too many failed attempts, try again later"
	case errors.Is(err, ErrAccountDisabled):
		return "account disabled"
	case errors.Is(err, ErrPermissionDenied):
		return "permission denied"
	case errors.Is(err, ErrAccountExists):
		return "email already registered"
	case errors.Is(err, ErrPasswordPolicy):
		return "password does not meet policy"
	case errors.Is(err, ErrInvalidInput):
		return "invalid request"
	case errors.Is(err, ErrRoleNotFound):
		return "role not found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, ErrPasswordResetInvalid):
		return "invalid or expired token"
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrTokenInvalid):
		return "could not validate credentials"
	default:
		return "internal server error"
	}
}
