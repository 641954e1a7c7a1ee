package sessiongate

import (
	"context"
	"fmt"
)

// ListSessions returns the active devices of userID from the session ledger,
// newest first. Rows already past their expiry are left out even when the
// sweep has not removed them yet.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	rows, err := e.sessionLedger.ListUserSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := e.now()
	out := make([]SessionInfo, 0, len(rows))
	for _, row := range rows {
		if !row.Active || !row.ExpiresAt.After(now) {
			continue
		}
		out = append(out, SessionInfo{
			SessionID: row.ID,
			IPAddress: row.IPAddress,
			UserAgent: row.UserAgent,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
			ExpiresAt: row.ExpiresAt,
		})
	}
	return out, nil
}

// ActiveSessionCount returns len(ListSessions(ctx, userID)).
func (e *Engine) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	sessions, err := e.ListSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}
