package flows

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LoginResult is the flow-local login response shape. Exactly one of
// Session and Reset is set.
type LoginResult struct {
	User    UserRecord
	Session *SessionIssue
	Reset   *ResetIssue
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess       int
	LoginFailure       int
	LoginResetRequired int
	AccountDisabled    int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess       string
	LoginFailure       string
	LoginResetRequired string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	AccountDisabled    error
	StoreUnavailable   error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	PasswordUpgradeOnLogin bool

	ClientIPFromContext  func(context.Context) string
	UserAgentFromContext func(context.Context) string

	FindUserByEmail    func(context.Context, string) (UserRecord, error)
	IsUserNotFound     func(error) bool
	UpdatePasswordHash func(context.Context, string, string) error

	VerifyPassword       func(string, string) (bool, error)
	VerifyDummy          func(string)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)

	CreateSession func(ctx context.Context, user UserRecord, ip, userAgent string) (SessionIssue, error)
	IssueReset    func(ctx context.Context, user UserRecord) (ResetIssue, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// NormalizeEmail lowercases and trims an email for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.UserAgentFromContext == nil {
		deps.UserAgentFromContext = func(context.Context) string { return "" }
	}
	if deps.VerifyDummy == nil {
		deps.VerifyDummy = func(string) {}
	}
}

// RunLogin verifies the credential and either creates a session or, when a
// forced reset is pending, issues a reset token and defers the login.
//
// Unknown email and wrong password return the same error after the same
// amount of hashing work; only the audit reason differs.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)
	if deps.FindUserByEmail == nil ||
		deps.VerifyPassword == nil ||
		deps.CreateSession == nil ||
		deps.IssueReset == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	fail := func(userID, r string, err error) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, email, "", err, reason(r))
		return nil, err
	}

	if email == "" || password == "" {
		deps.VerifyDummy(password)
		return fail("", "empty_credentials", deps.Errors.InvalidCredentials)
	}

	user, err := deps.FindUserByEmail(ctx, email)
	if err != nil {
		if deps.IsUserNotFound != nil && deps.IsUserNotFound(err) {
			deps.VerifyDummy(password)
			return fail("", "user_not_found", deps.Errors.InvalidCredentials)
		}
		return nil, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return fail(user.UserID, "password_mismatch", deps.Errors.InvalidCredentials)
	}

	if !user.Enabled {
		deps.MetricInc(deps.Metrics.AccountDisabled)
		return fail(user.UserID, "account_disabled", deps.Errors.AccountDisabled)
	}

	if deps.PasswordUpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if needsUpgrade, err := deps.PasswordNeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := deps.HashPassword(password); err == nil {
				if err := deps.UpdatePasswordHash(ctx, user.UserID, upgradedHash); err != nil {
					deps.Warn("sessiongate: password hash upgrade update failed", "user_id", user.UserID)
				}
			} else {
				deps.Warn("sessiongate: password hash upgrade generation failed", "user_id", user.UserID)
			}
		}
	}
	password = ""

	if user.ResetRequired {
		reset, err := deps.IssueReset(ctx, user)
		if err != nil {
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.UserID, email, "", err, reason("reset_issue_failed"))
			return nil, err
		}
		deps.MetricInc(deps.Metrics.LoginResetRequired)
		deps.EmitAudit(ctx, deps.Events.LoginResetRequired, true, user.UserID, email, "", nil, func() map[string]string {
			return map[string]string{"expires_at": reset.ExpiresAt.UTC().Format(time.RFC3339)}
		})
		return &LoginResult{User: user, Reset: &reset}, nil
	}

	issued, err := deps.CreateSession(ctx, user, deps.ClientIPFromContext(ctx), deps.UserAgentFromContext(ctx))
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.UserID, email, "", err, reason("session_creation_failed"))
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UserID, email, issued.SessionID, nil, nil)
	return &LoginResult{User: user, Session: &issued}, nil
}
