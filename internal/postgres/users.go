package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/MrEthical07/sessiongate"
	"github.com/google/uuid"
)

var (
	_ sessiongate.UserProvider  = (*Store)(nil)
	_ sessiongate.RoleProvider  = (*Store)(nil)
	_ sessiongate.SessionLedger = (*Store)(nil)
	_ sessiongate.ResetLedger   = (*Store)(nil)
	_ sessiongate.Sweeper       = (*Store)(nil)
)

const userColumns = `id, email, first_name, last_name, phone, hash_password, status, password_reset_required, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (sessiongate.UserRecord, error) {
	var u sessiongate.UserRecord
	err := row.Scan(&u.UserID, &u.Email, &u.FirstName, &u.LastName, &u.Phone,
		&u.PasswordHash, &u.Enabled, &u.PasswordResetRequired, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// FindUserByID returns ErrUserNotFound for unknown or malformed ids.
func (s *Store) FindUserByID(ctx context.Context, userID string) (sessiongate.UserRecord, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return sessiongate.UserRecord{}, sessiongate.ErrUserNotFound
	}
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return sessiongate.UserRecord{}, sessiongate.ErrUserNotFound
	}
	return u, err
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (sessiongate.UserRecord, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, normalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return sessiongate.UserRecord{}, sessiongate.ErrUserNotFound
	}
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, input sessiongate.CreateUserInput) (sessiongate.UserRecord, error) {
	now := s.now().UTC()
	u := sessiongate.UserRecord{
		UserID:       uuid.NewString(),
		Email:        normalizeEmail(input.Email),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		PasswordHash: input.PasswordHash,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.UserID, u.Email, u.FirstName, u.LastName, u.Phone,
		u.PasswordHash, u.Enabled, u.PasswordResetRequired, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return sessiongate.UserRecord{}, sessiongate.ErrAccountExists
	}
	if err != nil {
		return sessiongate.UserRecord{}, err
	}
	return u, nil
}

func (s *Store) UpdateUserPasswordHash(ctx context.Context, userID, passwordHash string) error {
	return s.updateUser(ctx, `UPDATE users SET hash_password = $2, updated_at = $3 WHERE id = $1`, userID, passwordHash)
}

func (s *Store) SetForcedResetFlag(ctx context.Context, userID string, required bool) error {
	return s.updateUser(ctx, `UPDATE users SET password_reset_required = $2, updated_at = $3 WHERE id = $1`, userID, required)
}

// SetUserEnabled flips the status column.
func (s *Store) SetUserEnabled(ctx context.Context, userID string, enabled bool) error {
	return s.updateUser(ctx, `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`, userID, enabled)
}

// ListUsers returns every user ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]sessiongate.UserRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sessiongate.UserRecord
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) updateUser(ctx context.Context, query, userID string, value any) error {
	if _, err := uuid.Parse(userID); err != nil {
		return sessiongate.ErrUserNotFound
	}
	res, err := s.db.ExecContext(ctx, query, userID, value, s.now().UTC())
	if err != nil {
		return err
	}
	return requireRow(res, sessiongate.ErrUserNotFound)
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
