package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/sessiongate/jwt"
)

// ResetTokenRow is the ledger row backing one reset token.
type ResetTokenRow struct {
	ID        string
	UserID    string
	Token     string
	Used      bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ResetCheckResult describes a reset token that passed every check.
type ResetCheckResult struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

type PasswordResetMetrics struct {
	PasswordResetIssued  int
	PasswordResetSuccess int
	PasswordResetFailure int
}

type PasswordResetEvents struct {
	PasswordResetSuccess string
	PasswordResetFailure string
}

type PasswordResetErrors struct {
	EngineNotReady       error
	PasswordResetInvalid error
	PasswordPolicy       error
	StoreUnavailable     error
}

type PasswordResetDeps struct {
	MinPasswordLength int
	MaxPasswordLength int

	Now                  func() time.Time
	NewID                func() string
	ClientIPFromContext  func(context.Context) string
	UserAgentFromContext func(context.Context) string

	CreateResetToken func(userID, email string) (string, time.Time, error)
	ParseReset       func(string) (*jwt.ResetClaims, error)

	LedgerCreate     func(context.Context, ResetTokenRow) error
	LedgerFindActive func(ctx context.Context, token, userID string, now time.Time) (ResetTokenRow, error)
	LedgerMarkUsed   func(ctx context.Context, id string, now time.Time) error
	IsLedgerNotFound func(error) bool

	FindUserByID       func(context.Context, string) (UserRecord, error)
	IsUserNotFound     func(error) bool
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(context.Context, string, string) error
	SetForcedResetFlag func(context.Context, string, bool) error
	RevokeAllSessions  func(ctx context.Context, userID string) (int, error)
	CreateSession      func(ctx context.Context, user UserRecord, ip, userAgent string) (SessionIssue, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.IsLedgerNotFound == nil {
		deps.IsLedgerNotFound = func(error) bool { return false }
	}
	if deps.IsUserNotFound == nil {
		deps.IsUserNotFound = func(error) bool { return false }
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.UserAgentFromContext == nil {
		deps.UserAgentFromContext = func(context.Context) string { return "" }
	}
}

// RunIssuePasswordReset mints a reset token and persists its ledger row
// with the same expiry.
func RunIssuePasswordReset(ctx context.Context, user UserRecord, deps PasswordResetDeps) (ResetIssue, error) {
	normalizePasswordResetDeps(&deps)
	if deps.CreateResetToken == nil || deps.LedgerCreate == nil || deps.NewID == nil {
		return ResetIssue{}, deps.Errors.EngineNotReady
	}

	token, expiresAt, err := deps.CreateResetToken(user.UserID, user.Email)
	if err != nil {
		return ResetIssue{}, err
	}
	if err := deps.LedgerCreate(ctx, ResetTokenRow{
		ID:        deps.NewID(),
		UserID:    user.UserID,
		Token:     token,
		CreatedAt: deps.Now(),
		ExpiresAt: expiresAt,
	}); err != nil {
		return ResetIssue{}, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	deps.MetricInc(deps.Metrics.PasswordResetIssued)
	return ResetIssue{Token: token, ExpiresAt: expiresAt}, nil
}

// RunValidateResetToken runs every reset check without consuming the token.
func RunValidateResetToken(ctx context.Context, token string, deps PasswordResetDeps) (*ResetCheckResult, error) {
	normalizePasswordResetDeps(&deps)
	row, user, err := checkResetToken(ctx, token, deps)
	if err != nil {
		return nil, err
	}
	return &ResetCheckResult{UserID: user.UserID, Email: user.Email, ExpiresAt: row.ExpiresAt}, nil
}

// RunResetPassword consumes a reset token, stores the new password, clears
// the forced-reset flag, revokes every existing session, and logs the user
// in with a new one.
//
// The ledger row is claimed before the password is written, so of two
// concurrent attempts with one token at most one proceeds.
func RunResetPassword(ctx context.Context, token, newPassword string, deps PasswordResetDeps) (*LoginResult, error) {
	normalizePasswordResetDeps(&deps)
	if deps.HashPassword == nil || deps.UpdatePasswordHash == nil || deps.SetForcedResetFlag == nil ||
		deps.LedgerMarkUsed == nil || deps.RevokeAllSessions == nil || deps.CreateSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(userID, r string, err error) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetFailure, false, userID, "", "", err, reason(r))
		return nil, err
	}

	row, user, err := checkResetToken(ctx, token, deps)
	if err != nil {
		return fail("", "invalid_token", err)
	}
	if err := CheckPasswordPolicy(newPassword, deps.MinPasswordLength, deps.MaxPasswordLength, deps.Errors.PasswordPolicy); err != nil {
		return fail(user.UserID, "password_policy", err)
	}

	now := deps.Now()
	if err := deps.LedgerMarkUsed(ctx, row.ID, now); err != nil {
		if deps.IsLedgerNotFound(err) {
			return fail(user.UserID, "token_consumed", deps.Errors.PasswordResetInvalid)
		}
		return fail(user.UserID, "store_unavailable", fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err))
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return fail(user.UserID, "hash_failed", err)
	}
	if err := deps.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
		return fail(user.UserID, "store_unavailable", fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err))
	}
	if err := deps.SetForcedResetFlag(ctx, user.UserID, false); err != nil {
		return fail(user.UserID, "store_unavailable", fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err))
	}
	user.PasswordHash = hash
	user.ResetRequired = false

	if _, err := deps.RevokeAllSessions(ctx, user.UserID); err != nil {
		deps.Warn("sessiongate: revoke sessions after password reset failed", "user_id", user.UserID, "error", err)
	}

	issued, err := deps.CreateSession(ctx, user, deps.ClientIPFromContext(ctx), deps.UserAgentFromContext(ctx))
	if err != nil {
		return fail(user.UserID, "session_creation_failed", err)
	}

	deps.MetricInc(deps.Metrics.PasswordResetSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetSuccess, true, user.UserID, user.Email, issued.SessionID, nil, nil)
	return &LoginResult{User: user, Session: &issued}, nil
}

// checkResetToken returns PasswordResetInvalid for every token-state
// failure: bad signature, expired, consumed, unknown, wrong user, or a
// forced-reset flag that is already clear.
func checkResetToken(ctx context.Context, token string, deps PasswordResetDeps) (ResetTokenRow, UserRecord, error) {
	if deps.ParseReset == nil || deps.LedgerFindActive == nil || deps.FindUserByID == nil {
		return ResetTokenRow{}, UserRecord{}, deps.Errors.EngineNotReady
	}
	invalid := deps.Errors.PasswordResetInvalid

	claims, err := deps.ParseReset(token)
	if err != nil {
		return ResetTokenRow{}, UserRecord{}, invalid
	}

	row, err := deps.LedgerFindActive(ctx, token, claims.Subject, deps.Now())
	if err != nil {
		if deps.IsLedgerNotFound(err) {
			return ResetTokenRow{}, UserRecord{}, invalid
		}
		return ResetTokenRow{}, UserRecord{}, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	if row.Used || row.UserID != claims.Subject || !deps.Now().Before(row.ExpiresAt) {
		return ResetTokenRow{}, UserRecord{}, invalid
	}

	user, err := deps.FindUserByID(ctx, claims.Subject)
	if err != nil {
		if deps.IsUserNotFound(err) {
			return ResetTokenRow{}, UserRecord{}, invalid
		}
		return ResetTokenRow{}, UserRecord{}, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	if !user.ResetRequired || NormalizeEmail(user.Email) != NormalizeEmail(claims.Email) {
		return ResetTokenRow{}, UserRecord{}, invalid
	}

	return row, user, nil
}
