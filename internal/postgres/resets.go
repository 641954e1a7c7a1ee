package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/sessiongate"
	"github.com/google/uuid"
)

func (s *Store) CreateResetToken(ctx context.Context, record sessiongate.ResetTokenRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, token, is_used, created_at, updated_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.UserID, record.Token, record.Used,
		record.CreatedAt.UTC(), record.UpdatedAt.UTC(), record.ExpiresAt.UTC())
	return err
}

func (s *Store) FindActiveResetToken(ctx context.Context, token, userID string, now time.Time) (sessiongate.ResetTokenRecord, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return sessiongate.ResetTokenRecord{}, sessiongate.ErrPasswordResetInvalid
	}
	var r sessiongate.ResetTokenRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, token, is_used, created_at, updated_at, expires_at FROM password_reset_tokens
		 WHERE token = $1 AND user_id = $2 AND NOT is_used AND expires_at > $3`,
		token, userID, now.UTC()).
		Scan(&r.ID, &r.UserID, &r.Token, &r.Used, &r.CreatedAt, &r.UpdatedAt, &r.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sessiongate.ResetTokenRecord{}, sessiongate.ErrPasswordResetInvalid
	}
	return r, err
}

// MarkResetTokenUsed claims the row with a conditional update. Of two
// concurrent claims exactly one affects a row; the other gets
// ErrPasswordResetInvalid.
func (s *Store) MarkResetTokenUsed(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE password_reset_tokens SET is_used = TRUE, updated_at = $2 WHERE id = $1 AND NOT is_used`,
		id, now.UTC())
	if err != nil {
		return err
	}
	return requireRow(res, sessiongate.ErrPasswordResetInvalid)
}
