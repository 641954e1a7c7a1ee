package flows

import (
	"context"

	"github.com/MrEthical07/sessiongate/session"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.ParseAccess != nil && s.deps.Session.Store != nil
}

func (s Service) CreateSession(ctx context.Context, userID, email, ip, userAgent string) (SessionIssue, error) {
	return RunCreateSession(ctx, userID, email, ip, userAgent, s.deps.Session)
}

func (s Service) ValidateSession(ctx context.Context, sessionID, token string) (*session.Session, error) {
	return RunValidateSession(ctx, sessionID, token, s.deps.Session)
}

func (s Service) RefreshSession(ctx context.Context, sessionID, newToken string) (*session.Session, error) {
	return RunRefreshSession(ctx, sessionID, newToken, s.deps.Session)
}

func (s Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	return RunRevokeSession(ctx, userID, sessionID, s.deps.Session)
}

func (s Service) RevokeAllSessions(ctx context.Context, userID string) (int, error) {
	return RunRevokeAllSessions(ctx, userID, s.deps.Session)
}

func (s Service) Validate(ctx context.Context, tokenStr string) ValidateResult {
	return RunValidate(ctx, tokenStr, s.deps.Validate)
}

func (s Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) CreateAccount(ctx context.Context, req AccountCreateRequest) (*LoginResult, error) {
	return RunCreateAccount(ctx, req, s.deps.Account)
}

func (s Service) Refresh(ctx context.Context, sessionID string) (*RefreshResult, error) {
	return RunRefresh(ctx, sessionID, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, userID, sessionID string) error {
	return RunLogout(ctx, userID, sessionID, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID string) error {
	return RunLogoutAll(ctx, userID, s.deps.Logout)
}

func (s Service) IssuePasswordReset(ctx context.Context, user UserRecord) (ResetIssue, error) {
	return RunIssuePasswordReset(ctx, user, s.deps.PasswordReset)
}

func (s Service) ValidateResetToken(ctx context.Context, token string) (*ResetCheckResult, error) {
	return RunValidateResetToken(ctx, token, s.deps.PasswordReset)
}

func (s Service) ResetPassword(ctx context.Context, token, newPassword string) (*LoginResult, error) {
	return RunResetPassword(ctx, token, newPassword, s.deps.PasswordReset)
}
