package sessiongate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/sessiongate/internal/audit"
	"github.com/MrEthical07/sessiongate/internal/flows"
	"github.com/MrEthical07/sessiongate/internal/rate"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/MrEthical07/sessiongate/permission"
	"github.com/MrEthical07/sessiongate/session"
)

// Engine is the session-bound authentication and authorization engine.
// It is built once by [Builder] and is safe for concurrent use.
type Engine struct {
	config         Config
	registry       *permission.Registry
	resolver       *permission.Resolver
	sessionStore   *session.Store
	rateLimiter    *rate.Limiter
	rateExempt     map[string]struct{}
	audit          *audit.Dispatcher
	metrics        *Metrics
	passwordHash   *password.Bcrypt
	jwtManager     *jwt.Manager
	userProvider   UserProvider
	roleProvider   RoleProvider
	sessionLedger  SessionLedger
	resetLedger    ResetLedger
	sessionSweeper Sweeper
	logger         *slog.Logger
	clock          func() time.Time
	flows          flows.Service
}

// Close drains pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Logger returns the logger the engine was built with.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// CookieConfig returns the session cookie settings.
func (e *Engine) CookieConfig() CookieConfig { return e.config.Cookie }

// SessionTTL returns the sliding session lifetime.
func (e *Engine) SessionTTL() time.Duration { return e.config.Session.TTL }

// AccessTokenTTL returns the lifetime of issued access tokens.
func (e *Engine) AccessTokenTTL() time.Duration { return e.config.JWT.AccessTTL }

// Registry returns the frozen attribute catalogue.
func (e *Engine) Registry() *permission.Registry { return e.registry }

// Ping reports session store round-trip latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	return e.sessionStore.Ping(ctx)
}

/*
====================================
AUTHENTICATION GATE
====================================
*/

// Validate runs the authentication gate for one request: token present,
// signature and expiry valid, session present with the same embedded token,
// user present and enabled.
//
// Every failure returns ErrUnauthorized except a disabled account, which
// returns ErrAccountDisabled. A store error fails closed as ErrUnauthorized
// wrapping ErrStoreUnavailable.
func (e *Engine) Validate(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	res := e.flows.Validate(ctx, tokenStr)
	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureDisabled:
		e.metricInc(MetricValidateFailure)
		e.metricInc(MetricAccountDisabled)
		return nil, ErrAccountDisabled
	case flows.ValidateFailureStore:
		e.metricInc(MetricValidateFailure)
		e.logger.Error("sessiongate: validate store failure", "error", res.Err)
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrStoreUnavailable)
	default:
		e.metricInc(MetricValidateFailure)
		return nil, ErrUnauthorized
	}

	out := &AuthResult{
		UserID:    res.Claims.Subject,
		Email:     res.Claims.Email,
		SessionID: res.Claims.SID,
		Token:     tokenStr,
		User:      fromFlowUser(res.User),
	}
	if res.Claims.IssuedAt != nil {
		out.IssuedAt = res.Claims.IssuedAt.Time
	}
	if res.Claims.ExpiresAt != nil {
		out.ExpiresAt = res.Claims.ExpiresAt.Time
	}
	return out, nil
}

/*
====================================
SESSIONS
====================================
*/

// CreateSession writes a ledger row and an ephemeral record for userID and
// returns the session id with its bound access token.
func (e *Engine) CreateSession(ctx context.Context, userID, email, ip, userAgent string) (IssuedSession, error) {
	issued, err := e.flows.CreateSession(ctx, userID, email, ip, userAgent)
	if err != nil {
		return IssuedSession{}, err
	}
	return IssuedSession{
		SessionID:   issued.SessionID,
		AccessToken: issued.AccessToken,
		ExpiresAt:   issued.ExpiresAt,
	}, nil
}

// ValidateSession returns the ephemeral record when it exists and embeds
// presentedToken. It does not check user status.
func (e *Engine) ValidateSession(ctx context.Context, sessionID, presentedToken string) (*session.Session, error) {
	return e.flows.ValidateSession(ctx, sessionID, presentedToken)
}

// RefreshSession swaps the embedded token and re-applies the full session TTL.
func (e *Engine) RefreshSession(ctx context.Context, sessionID, newToken string) (*session.Session, error) {
	return e.flows.RefreshSession(ctx, sessionID, newToken)
}

// RevokeSession deletes one session from both stores.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID string) error {
	return e.flows.RevokeSession(ctx, userID, sessionID)
}

// RevokeAllSessions invalidates every session of userID and returns how many
// ephemeral records were removed. No sessions is not an error.
func (e *Engine) RevokeAllSessions(ctx context.Context, userID string) (int, error) {
	return e.flows.RevokeAllSessions(ctx, userID)
}

// Refresh mints a new access token for the session id carried by the
// session cookie. The previous access token stops validating.
func (e *Engine) Refresh(ctx context.Context, sessionID string) (*RefreshResult, error) {
	res, err := e.flows.Refresh(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := &RefreshResult{
		UserID:      res.UserID,
		SessionID:   res.SessionID,
		AccessToken: res.AccessToken,
	}
	if res.Session != nil {
		out.SessionExpiresAt = res.Session.Expiry()
	}
	return out, nil
}

// Logout revokes the caller's current session.
func (e *Engine) Logout(ctx context.Context, userID, sessionID string) error {
	return e.flows.Logout(ctx, userID, sessionID)
}

// LogoutAll revokes every session of userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	return e.flows.LogoutAll(ctx, userID)
}

// SweepSessions deletes ledger rows that are expired or inactive and returns
// the count. Without a configured Sweeper it does nothing.
func (e *Engine) SweepSessions(ctx context.Context) (int64, error) {
	if e.sessionSweeper == nil {
		return 0, nil
	}
	n, err := e.sessionSweeper.DeleteExpiredSessions(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n > 0 {
		e.metrics.Add(MetricSessionsSwept, uint64(n))
	}
	return n, nil
}

/*
====================================
RBAC
====================================
*/

// IsSuperAdmin reports whether userID holds the configured super-admin role.
// A user without a role is not a super-admin.
func (e *Engine) IsSuperAdmin(ctx context.Context, userID string) (bool, error) {
	role, err := e.roleProvider.FindRoleForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return e.resolver.IsSuperAdmin(role.Name), nil
}

// UserAttributes resolves the attributes userID holds. A user without a role
// holds none.
func (e *Engine) UserAttributes(ctx context.Context, userID string) (permission.Attributes, error) {
	role, err := e.roleProvider.FindRoleForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return e.resolver.Resolve("", nil), nil
		}
		return permission.Attributes{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if e.resolver.IsSuperAdmin(role.Name) {
		return e.resolver.Resolve(role.Name, nil), nil
	}

	rows, err := e.roleProvider.ListAttributeMappingsForRole(ctx, role.ID)
	if err != nil {
		return permission.Attributes{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	mappings := make([]permission.Mapping, 0, len(rows))
	for _, row := range rows {
		mappings = append(mappings, permission.Mapping{Attribute: row.Attribute, Value: row.Value})
	}
	return e.resolver.Resolve(role.Name, mappings), nil
}

// GetUserAttributes returns the attribute map of userID. Super-admins get
// every registered attribute set to true; others get only mapped attributes.
func (e *Engine) GetUserAttributes(ctx context.Context, userID string) (map[string]bool, error) {
	attrs, err := e.UserAttributes(ctx, userID)
	if err != nil {
		return nil, err
	}
	return attrs.Map(), nil
}

// Authorize checks that userID holds every required attribute. A denial
// returns ErrPermissionDenied and the decision listing what was missing. A
// store failure never grants: it returns ErrPermissionDenied wrapping
// ErrStoreUnavailable.
func (e *Engine) Authorize(ctx context.Context, userID string, required ...string) (Decision, error) {
	attrs, err := e.UserAttributes(ctx, userID)
	if err != nil {
		e.metricInc(MetricPermissionDenied)
		e.logger.Error("sessiongate: attribute lookup failed", "user_id", userID, "error", err)
		return Decision{Missing: append([]string(nil), required...)}, fmt.Errorf("%w: %w", ErrPermissionDenied, ErrStoreUnavailable)
	}

	d := attrs.Authorize(required...)
	if d.Granted {
		return Decision{Granted: true}, nil
	}

	e.metricInc(MetricPermissionDenied)
	e.emitAudit(ctx, auditEventPermissionDenied, false, userID, "", "", ErrPermissionDenied, func() map[string]string {
		return map[string]string{"missing": strings.Join(d.Missing, ",")}
	})
	return Decision{Missing: d.Missing}, ErrPermissionDenied
}

/*
====================================
AUTH RATE LIMITER
====================================
*/

// RateLimitExempt reports whether path bypasses the failure limiter.
func (e *Engine) RateLimitExempt(path string) bool {
	if e.rateLimiter == nil {
		return true
	}
	_, ok := e.rateExempt[path]
	return ok
}

// RateLimitBlocked reports whether (ip, path) is blocked. Limiter errors are
// logged and fail open.
func (e *Engine) RateLimitBlocked(ctx context.Context, ip, path string) bool {
	if e.RateLimitExempt(path) {
		return false
	}
	blocked, err := e.rateLimiter.Blocked(ctx, ip, path)
	if err != nil {
		e.logger.Error("sessiongate: rate limiter check failed", "ip", ip, "path", path, "error", err)
		return false
	}
	if blocked {
		e.metricInc(MetricRateLimitHit)
	}
	return blocked
}

// RateLimitFailures returns the failures counted for (ip, path) in the
// current window. Exempt paths always report zero.
func (e *Engine) RateLimitFailures(ctx context.Context, ip, path string) (int, error) {
	if e.RateLimitExempt(path) {
		return 0, nil
	}
	n, err := e.rateLimiter.Failures(ctx, ip, path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// RateLimitObserve records the response status of a forwarded request. A
// 401 or 403 counts as a failure; anything else clears the counter.
// Limiter errors are logged and otherwise ignored.
func (e *Engine) RateLimitObserve(ctx context.Context, ip, path string, status int) {
	if e.RateLimitExempt(path) {
		return
	}
	blocked, err := e.rateLimiter.Observe(ctx, ip, path, status)
	if err != nil {
		e.logger.Error("sessiongate: rate limiter update failed", "ip", ip, "path", path, "error", err)
		return
	}
	if blocked {
		e.logger.Warn("sessiongate: client blocked", "ip", ip, "path", path, "block_seconds", int(e.config.RateLimit.BlockTime.Seconds()))
		e.emitRateLimit(ctx, ip, path)
	}
}
