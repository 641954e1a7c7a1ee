package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessiongate/session"
)

// SessionStore is the ephemeral store consulted on every request.
type SessionStore interface {
	Save(ctx context.Context, sess *session.Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Refresh(ctx context.Context, sessionID, accessToken string, now time.Time, ttl time.Duration) (*session.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteMany(ctx context.Context, sessionIDs []string) (int64, error)
}

// LedgerRow is the durable mirror written when a session is created.
type LedgerRow struct {
	ID          string
	UserID      string
	AccessToken string
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type SessionMetrics struct {
	SessionCreated     int
	SessionInvalidated int
}

type SessionErrors struct {
	EngineNotReady            error
	SessionCreationFailed     error
	SessionNotFound           error
	SessionInvalidationFailed error
	StoreUnavailable          error
}

// SessionDeps captures session lifecycle dependencies.
type SessionDeps struct {
	SessionTTL  time.Duration
	Now         func() time.Time
	NewID       func() string
	IssueAccess func(userID, email, sessionID string) (string, time.Time, error)

	Store SessionStore

	LedgerCreate        func(context.Context, LedgerRow) error
	LedgerExtend        func(ctx context.Context, sessionID, accessToken string, expiresAt, updatedAt time.Time) error
	LedgerDeactivate    func(ctx context.Context, userID, sessionID string) error
	LedgerDeactivateAll func(ctx context.Context, userID string) ([]string, error)

	MetricInc func(int)
	MetricAdd func(int, uint64)
	Warn      func(string, ...any)

	Metrics SessionMetrics
	Errors  SessionErrors
}

func normalizeSessionDeps(deps *SessionDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.MetricAdd == nil {
		deps.MetricAdd = func(int, uint64) {}
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
}

// RunCreateSession allocates a session id, mints the access token bound to
// it, writes the ledger row, then writes the ephemeral record with the
// session TTL. A failed ephemeral write deactivates the ledger row again.
func RunCreateSession(ctx context.Context, userID, email, ip, userAgent string, deps SessionDeps) (SessionIssue, error) {
	normalizeSessionDeps(&deps)
	if deps.Store == nil || deps.NewID == nil || deps.IssueAccess == nil || deps.LedgerCreate == nil {
		return SessionIssue{}, deps.Errors.EngineNotReady
	}

	now := deps.Now()
	sessionID := deps.NewID()
	expiresAt := now.Add(deps.SessionTTL)

	token, _, err := deps.IssueAccess(userID, email, sessionID)
	if err != nil {
		return SessionIssue{}, fmt.Errorf("%w: %v", deps.Errors.SessionCreationFailed, err)
	}

	if err := deps.LedgerCreate(ctx, LedgerRow{
		ID:          sessionID,
		UserID:      userID,
		AccessToken: token,
		IPAddress:   ip,
		UserAgent:   userAgent,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}); err != nil {
		return SessionIssue{}, fmt.Errorf("%w: %v", deps.Errors.SessionCreationFailed, err)
	}

	sess := &session.Session{
		SchemaVersion: session.CurrentSchemaVersion,
		SessionID:     sessionID,
		UserID:        userID,
		Email:         email,
		AccessToken:   token,
		IPAddress:     ip,
		UserAgent:     userAgent,
		CreatedAt:     now.UnixMilli(),
		LastActivity:  now.UnixMilli(),
		ExpiresAt:     expiresAt.UnixMilli(),
	}
	if err := deps.Store.Save(ctx, sess, deps.SessionTTL); err != nil {
		if deps.LedgerDeactivate != nil {
			if derr := deps.LedgerDeactivate(ctx, userID, sessionID); derr != nil {
				deps.Warn("sessiongate: ledger rollback failed", "session_id", sessionID, "error", derr)
			}
		}
		return SessionIssue{}, fmt.Errorf("%w: %v", deps.Errors.SessionCreationFailed, err)
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	return SessionIssue{SessionID: sessionID, AccessToken: token, ExpiresAt: expiresAt}, nil
}

// RunValidateSession reads the ephemeral record and requires its embedded
// token to equal the presented one. It does not check user status.
func RunValidateSession(ctx context.Context, sessionID, presentedToken string, deps SessionDeps) (*session.Session, error) {
	if deps.Store == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if sessionID == "" || presentedToken == "" {
		return nil, deps.Errors.SessionNotFound
	}

	sess, err := deps.Store.Get(ctx, sessionID)
	if err != nil {
		return nil, mapSessionStoreError(err, deps.Errors)
	}
	if subtle.ConstantTimeCompare([]byte(sess.AccessToken), []byte(presentedToken)) != 1 {
		return nil, deps.Errors.SessionNotFound
	}
	return sess, nil
}

// RunRefreshSession swaps the embedded token and re-applies the full TTL in
// the ephemeral store, then moves the ledger expiry. Ledger drift is logged,
// not returned.
func RunRefreshSession(ctx context.Context, sessionID, newToken string, deps SessionDeps) (*session.Session, error) {
	normalizeSessionDeps(&deps)
	if deps.Store == nil {
		return nil, deps.Errors.EngineNotReady
	}

	now := deps.Now()
	sess, err := deps.Store.Refresh(ctx, sessionID, newToken, now, deps.SessionTTL)
	if err != nil {
		return nil, mapSessionStoreError(err, deps.Errors)
	}

	if deps.LedgerExtend != nil {
		if err := deps.LedgerExtend(ctx, sessionID, newToken, now.Add(deps.SessionTTL), now); err != nil {
			deps.Warn("sessiongate: ledger extend failed", "session_id", sessionID, "error", err)
		}
	}
	return sess, nil
}

// RunRevokeSession deletes the ephemeral record and marks the ledger row inactive.
func RunRevokeSession(ctx context.Context, userID, sessionID string, deps SessionDeps) error {
	normalizeSessionDeps(&deps)
	if deps.Store == nil {
		return deps.Errors.EngineNotReady
	}

	if err := deps.Store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", deps.Errors.SessionInvalidationFailed, err)
	}
	if deps.LedgerDeactivate != nil {
		if err := deps.LedgerDeactivate(ctx, userID, sessionID); err != nil {
			deps.Warn("sessiongate: ledger deactivate failed", "session_id", sessionID, "error", err)
		}
	}
	deps.MetricInc(deps.Metrics.SessionInvalidated)
	return nil
}

// RunRevokeAllSessions deactivates every ledger row of userID, then deletes
// the matching ephemeral records in one batch. No sessions is a success.
// A failed batch delete leaves the records to expire by TTL and is reported.
func RunRevokeAllSessions(ctx context.Context, userID string, deps SessionDeps) (int, error) {
	normalizeSessionDeps(&deps)
	if deps.Store == nil || deps.LedgerDeactivateAll == nil {
		return 0, deps.Errors.EngineNotReady
	}

	ids, err := deps.LedgerDeactivateAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", deps.Errors.SessionInvalidationFailed, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := deps.Store.DeleteMany(ctx, ids)
	if err != nil {
		deps.Warn("sessiongate: bulk session delete failed", "user_id", userID, "sessions", len(ids), "error", err)
		return 0, fmt.Errorf("%w: %v", deps.Errors.SessionInvalidationFailed, err)
	}
	if n > 0 {
		deps.MetricAdd(deps.Metrics.SessionInvalidated, uint64(n))
	}
	return int(n), nil
}

func mapSessionStoreError(err error, errs SessionErrors) error {
	if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionCorrupt) {
		return errs.SessionNotFound
	}
	return fmt.Errorf("%w: %v", errs.StoreUnavailable, err)
}
