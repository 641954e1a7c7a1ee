// Package jwt issues and verifies the two signed token kinds: access tokens
// bound to a session id, and single-use password reset tokens.
//
// Verification checks signature, algorithm, and expiry. Every failure
// surfaces as [ErrInvalidToken] so callers cannot learn which check failed.
// Session liveness is not this package's concern.
package jwt
