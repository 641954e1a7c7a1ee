package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessiongate/session"
)

// RefreshResult is a new access token bound to the same session.
type RefreshResult struct {
	UserID      string
	SessionID   string
	AccessToken string
	Session     *session.Session
}

type RefreshMetrics struct {
	RefreshSuccess int
	RefreshFailure int
}

type RefreshEvents struct {
	RefreshSuccess string
	RefreshInvalid string
}

type RefreshErrors struct {
	EngineNotReady   error
	Unauthorized     error
	AccountDisabled  error
	SessionNotFound  error
	StoreUnavailable error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	GetSession     func(ctx context.Context, sessionID string) (*session.Session, error)
	FindUserByID   func(ctx context.Context, userID string) (UserRecord, error)
	IsUserNotFound func(error) bool
	IssueAccess    func(userID, email, sessionID string) (string, error)
	RefreshSession func(ctx context.Context, sessionID, newToken string) (*session.Session, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RefreshMetrics
	Events  RefreshEvents
	Errors  RefreshErrors
}

// RunRefresh mints a new access token for the session named by sessionID and
// re-applies the full session TTL. The previous token stops validating.
func RunRefresh(ctx context.Context, sessionID string, deps RefreshDeps) (*RefreshResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.GetSession == nil || deps.FindUserByID == nil || deps.IssueAccess == nil || deps.RefreshSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(userID, r string, err error) (*RefreshResult, error) {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshInvalid, false, userID, "", sessionID, err, reason(r))
		return nil, err
	}

	if sessionID == "" {
		return fail("", "missing_session", deps.Errors.Unauthorized)
	}

	sess, err := deps.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionCorrupt) {
			return fail("", "session_not_found", deps.Errors.Unauthorized)
		}
		return fail("", "store_unavailable", fmt.Errorf("%w: %w", deps.Errors.Unauthorized, deps.Errors.StoreUnavailable))
	}

	user, err := deps.FindUserByID(ctx, sess.UserID)
	if err != nil {
		if deps.IsUserNotFound != nil && deps.IsUserNotFound(err) {
			return fail(sess.UserID, "user_not_found", deps.Errors.Unauthorized)
		}
		return fail(sess.UserID, "store_unavailable", fmt.Errorf("%w: %w", deps.Errors.Unauthorized, deps.Errors.StoreUnavailable))
	}
	if !user.Enabled {
		return fail(user.UserID, "account_disabled", deps.Errors.AccountDisabled)
	}

	token, err := deps.IssueAccess(user.UserID, user.Email, sessionID)
	if err != nil {
		return fail(user.UserID, "issue_failed", err)
	}

	refreshed, err := deps.RefreshSession(ctx, sessionID, token)
	if err != nil {
		if deps.Errors.SessionNotFound != nil && errors.Is(err, deps.Errors.SessionNotFound) {
			return fail(user.UserID, "session_not_found", deps.Errors.Unauthorized)
		}
		return fail(user.UserID, "store_unavailable", fmt.Errorf("%w: %w", deps.Errors.Unauthorized, deps.Errors.StoreUnavailable))
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, user.UserID, user.Email, sessionID, nil, nil)
	return &RefreshResult{
		UserID:      user.UserID,
		SessionID:   sessionID,
		AccessToken: token,
		Session:     refreshed,
	}, nil
}
