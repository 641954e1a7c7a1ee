package flows

import (
	"context"
	"fmt"
	"strings"
)

type AccountCreateRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

type AccountCreateUserInput struct {
	Email        string
	FirstName    string
	LastName     string
	Phone        string
	PasswordHash string
}

type AccountMetrics struct {
	RegisterSuccess   int
	RegisterDuplicate int
	LoginSuccess      int
}

type AccountEvents struct {
	RegisterSuccess   string
	RegisterFailure   string
	RegisterDuplicate string
	LoginSuccess      string
}

type AccountErrors struct {
	EngineNotReady        error
	InvalidInput          error
	PasswordPolicy        error
	AccountExists         error
	SessionCreationFailed error
}

type AccountDeps struct {
	MinPasswordLength int
	MaxPasswordLength int

	ClientIPFromContext  func(context.Context) string
	UserAgentFromContext func(context.Context) string

	HashPassword      func(string) (string, error)
	CreateUser        func(context.Context, AccountCreateUserInput) (UserRecord, error)
	IsDuplicate       func(error) bool
	AssignDefaultRole func(ctx context.Context, userID string) error
	CreateSession     func(ctx context.Context, user UserRecord, ip, userAgent string) (SessionIssue, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics AccountMetrics
	Events  AccountEvents
	Errors  AccountErrors
}

func normalizeAccountDeps(deps *AccountDeps) {
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
}

// CheckPasswordPolicy enforces the byte-length bounds of a new password.
func CheckPasswordPolicy(password string, minLength, maxLength int, policyErr error) error {
	if len(password) < minLength {
		return fmt.Errorf("%w: password must be at least %d characters", policyErr, minLength)
	}
	if maxLength > 0 && len(password) > maxLength {
		return fmt.Errorf("%w: password must be at most %d bytes", policyErr, maxLength)
	}
	return nil
}

// RunCreateAccount registers a user, assigns the default role, and logs the
// new user in with a fresh session.
func RunCreateAccount(ctx context.Context, req AccountCreateRequest, deps AccountDeps) (*LoginResult, error) {
	normalizeAccountDeps(&deps)
	if deps.HashPassword == nil || deps.CreateUser == nil || deps.CreateSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(req.Email)
	fail := func(event, r string, err error) (*LoginResult, error) {
		deps.EmitAudit(ctx, event, false, "", email, "", err, reason(r))
		return nil, err
	}

	if email == "" || !strings.Contains(email, "@") {
		return fail(deps.Events.RegisterFailure, "invalid_email", fmt.Errorf("%w: email", deps.Errors.InvalidInput))
	}
	if err := CheckPasswordPolicy(req.Password, deps.MinPasswordLength, deps.MaxPasswordLength, deps.Errors.PasswordPolicy); err != nil {
		return fail(deps.Events.RegisterFailure, "password_policy", err)
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return fail(deps.Events.RegisterFailure, "hash_failed", err)
	}

	user, err := deps.CreateUser(ctx, AccountCreateUserInput{
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
	})
	if err != nil {
		if deps.IsDuplicate != nil && deps.IsDuplicate(err) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			return fail(deps.Events.RegisterDuplicate, "duplicate_email", deps.Errors.AccountExists)
		}
		return fail(deps.Events.RegisterFailure, "create_failed", err)
	}

	if deps.AssignDefaultRole != nil {
		if err := deps.AssignDefaultRole(ctx, user.UserID); err != nil {
			deps.Warn("sessiongate: default role assignment failed", "user_id", user.UserID, "error", err)
		}
	}
	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, user.UserID, email, "", nil, nil)

	issued, err := deps.CreateSession(ctx, user, deps.ClientIPFromContext(ctx), deps.UserAgentFromContext(ctx))
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UserID, email, issued.SessionID, nil, nil)
	return &LoginResult{User: user, Session: &issued}, nil
}
