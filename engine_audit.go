package sessiongate

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginResetRequired    = "login_reset_required"
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterFailure       = "register_failure"
	auditEventRegisterDuplicate     = "register_duplicate"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventLogoutSession         = "logout_session"
	auditEventLogoutAll             = "logout_all"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeInvalid = "password_change_invalid_old"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventPasswordResetSuccess  = "password_reset_success"
	auditEventPasswordResetFailure  = "password_reset_failure"
	auditEventPermissionDenied      = "permission_denied"
	auditEventRateLimitTriggered    = "rate_limit_triggered"
)

// auditErrorCodes maps error sentinels to the stable label stored in
// AuditEvent.Error. The first match wins, so wrapping sentinels such as
// ErrStoreUnavailable come before the ones they may wrap.
var auditErrorCodes = []struct {
	err  error
	code string
}{
	{ErrStoreUnavailable, "backend_unavailable"},
	{ErrRateLimited, "rate_limited"},
	{ErrAccountDisabled, "account_disabled"},
	{ErrPermissionDenied, "permission_denied"},
	{ErrAccountExists, "duplicate"},
	{ErrPasswordPolicy, "password_policy"},
	{ErrInvalidInput, "invalid_input"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrPasswordResetInvalid, "reset_token_invalid"},
	{ErrTokenInvalid, "invalid_token"},
	{ErrSessionNotFound, "session_not_found"},
	{ErrUserNotFound, "user_not_found"},
	{ErrSessionCreationFailed, "session_creation_failed"},
	{ErrSessionInvalidationFailed, "session_invalidation_failed"},
	{ErrUnauthorized, "unauthorized"},
}

func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range auditErrorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal_error"
}

// emitAudit hands one event to the dispatcher. The client address and user
// agent come from the request context; meta is only evaluated when an audit
// sink is configured.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, email, sessionID string, err error, meta func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	ev := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		IP:        ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		Success:   success,
		Error:     auditErrorCode(err),
	}
	if meta != nil {
		ev.Metadata = meta()
	}
	e.audit.Emit(ctx, ev)
}

func (e *Engine) emitRateLimit(ctx context.Context, ip, path string) {
	e.metricInc(MetricRateLimitBlock)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", "", ErrRateLimited, func() map[string]string {
		return map[string]string{"ip": ip, "path": path}
	})
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
