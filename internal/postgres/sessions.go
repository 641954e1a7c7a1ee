package postgres

import (
	"context"
	"time"

	"github.com/MrEthical07/sessiongate"
	"github.com/google/uuid"
)

const sessionColumns = `id, user_id, jwt_access_token, ip_address, user_agent, is_active, created_at, updated_at, expires_at`

func (s *Store) CreateSession(ctx context.Context, row sessiongate.LedgerSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		row.ID, row.UserID, row.AccessToken, row.IPAddress, row.UserAgent, row.Active,
		row.CreatedAt.UTC(), row.UpdatedAt.UTC(), row.ExpiresAt.UTC())
	return err
}

// ExtendSession returns ErrSessionNotFound when no active row matches.
func (s *Store) ExtendSession(ctx context.Context, sessionID, accessToken string, expiresAt, updatedAt time.Time) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return sessiongate.ErrSessionNotFound
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET jwt_access_token = $2, expires_at = $3, updated_at = $4 WHERE id = $1 AND is_active`,
		sessionID, accessToken, expiresAt.UTC(), updatedAt.UTC())
	if err != nil {
		return err
	}
	return requireRow(res, sessiongate.ErrSessionNotFound)
}

func (s *Store) DeactivateSession(ctx context.Context, userID, sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = FALSE, updated_at = $3 WHERE id = $1 AND user_id = $2`,
		sessionID, userID, s.now().UTC())
	return err
}

// DeactivateUserSessions marks the user's active rows inactive and returns
// the ids of all of the user's rows, so ephemeral records left behind by an
// earlier partial revoke are cleaned up too.
func (s *Store) DeactivateUserSessions(ctx context.Context, userID string) ([]string, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = FALSE, updated_at = $2 WHERE user_id = $1 AND is_active`,
		userID, s.now().UTC()); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM user_sessions WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteExpiredSessions removes rows that are expired or inactive.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE expires_at <= $1 OR NOT is_active`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListUserSessions returns the user's active rows, newest first.
func (s *Store) ListUserSessions(ctx context.Context, userID string) ([]sessiongate.LedgerSession, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE user_id = $1 AND is_active ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sessiongate.LedgerSession
	for rows.Next() {
		var r sessiongate.LedgerSession
		if err := rows.Scan(&r.ID, &r.UserID, &r.AccessToken, &r.IPAddress, &r.UserAgent,
			&r.Active, &r.CreatedAt, &r.UpdatedAt, &r.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
