package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/session"
)

// ValidateFailureKind classifies gate failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMissingToken
	ValidateFailureToken
	ValidateFailureSession
	ValidateFailureStore
	ValidateFailureUser
	ValidateFailureDisabled
)

// ValidateResult carries either the verified claims, session and user, or
// the step that failed.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.AccessClaims
	Session *session.Session
	User    UserRecord
}

// ValidateDeps captures the authentication gate dependencies.
type ValidateDeps struct {
	ParseAccess     func(string) (*jwt.AccessClaims, error)
	ValidateSession func(ctx context.Context, sessionID, token string) (*session.Session, error)
	FindUserByID    func(ctx context.Context, userID string) (UserRecord, error)
	IsUserNotFound  func(error) bool

	SessionNotFound error
}

// RunValidate runs the gate steps in order: token present, signature and
// expiry, session present with a matching token, user present and enabled.
// The first failing step ends the run.
func RunValidate(ctx context.Context, tokenStr string, deps ValidateDeps) ValidateResult {
	if tokenStr == "" {
		return ValidateResult{Failure: ValidateFailureMissingToken}
	}

	claims, err := deps.ParseAccess(tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureToken, Err: err}
	}

	sess, err := deps.ValidateSession(ctx, claims.SID, tokenStr)
	if err != nil {
		if deps.SessionNotFound != nil && errors.Is(err, deps.SessionNotFound) {
			return ValidateResult{Failure: ValidateFailureSession, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureStore, Err: err}
	}
	if sess.UserID != claims.Subject {
		return ValidateResult{Failure: ValidateFailureSession}
	}

	user, err := deps.FindUserByID(ctx, claims.Subject)
	if err != nil {
		if deps.IsUserNotFound != nil && deps.IsUserNotFound(err) {
			return ValidateResult{Failure: ValidateFailureUser, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureStore, Err: err}
	}
	if !user.Enabled {
		return ValidateResult{Failure: ValidateFailureDisabled}
	}

	return ValidateResult{
		Claims:  claims,
		Session: sess,
		User:    user,
	}
}
