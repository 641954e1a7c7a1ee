package flows

import (
	"context"
	"strconv"
)

type LogoutMetrics struct {
	Logout    int
	LogoutAll int
}

type LogoutEvents struct {
	LogoutSession string
	LogoutAll     string
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	RevokeSession     func(ctx context.Context, userID, sessionID string) error
	RevokeAllSessions func(ctx context.Context, userID string) (int, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics LogoutMetrics
	Events  LogoutEvents

	EngineNotReady error
}

func RunLogout(ctx context.Context, userID, sessionID string, deps LogoutDeps) error {
	if deps.RevokeSession == nil {
		return deps.EngineNotReady
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}

	err := deps.RevokeSession(ctx, userID, sessionID)
	if err == nil {
		deps.MetricInc(deps.Metrics.Logout)
	}
	deps.EmitAudit(ctx, deps.Events.LogoutSession, err == nil, userID, "", sessionID, err, nil)
	return err
}

func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) error {
	if deps.RevokeAllSessions == nil {
		return deps.EngineNotReady
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}

	n, err := deps.RevokeAllSessions(ctx, userID)
	if err == nil {
		deps.MetricInc(deps.Metrics.LogoutAll)
	}
	deps.EmitAudit(ctx, deps.Events.LogoutAll, err == nil, userID, "", "", err, func() map[string]string {
		return map[string]string{"sessions": strconv.Itoa(n)}
	})
	return err
}
