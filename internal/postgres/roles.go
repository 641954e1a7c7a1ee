package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MrEthical07/sessiongate"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const foreignKeyViolation = "23503"

func (s *Store) FindRoleForUser(ctx context.Context, userID string) (sessiongate.Role, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return sessiongate.Role{}, sessiongate.ErrRoleNotFound
	}
	var r sessiongate.Role
	err := s.db.QueryRowContext(ctx,
		`SELECT r.id, r.name, r.description FROM role_mapper m JOIN roles r ON r.id = m.role_id WHERE m.user_id = $1`,
		userID).Scan(&r.ID, &r.Name, &r.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return sessiongate.Role{}, sessiongate.ErrRoleNotFound
	}
	return r, err
}

func (s *Store) ListAttributeMappingsForRole(ctx context.Context, roleID string) ([]sessiongate.AttributeMapping, error) {
	if _, err := uuid.Parse(roleID); err != nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.name, m.value FROM role_attributes_mapper m JOIN role_attributes a ON a.id = m.attributes_id WHERE m.role_id = $1 ORDER BY a.name`,
		roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sessiongate.AttributeMapping
	for rows.Next() {
		var m sessiongate.AttributeMapping
		if err := rows.Scan(&m.Attribute, &m.Value); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AssignRole replaces the user's role. role_mapper is keyed by user_id.
func (s *Store) AssignRole(ctx context.Context, userID, roleName string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return sessiongate.ErrUserNotFound
	}
	var roleID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = $1`, roleName).Scan(&roleID)
	if errors.Is(err, sql.ErrNoRows) {
		return sessiongate.ErrRoleNotFound
	}
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO role_mapper (user_id, role_id) VALUES ($1, $2) ON CONFLICT (user_id) DO UPDATE SET role_id = EXCLUDED.role_id`,
		userID, roleID)
	if isForeignKeyViolation(err) {
		return sessiongate.ErrUserNotFound
	}
	return err
}

// CreateRole inserts a role, or returns the existing one with the same name.
func (s *Store) CreateRole(ctx context.Context, name, description string) (sessiongate.Role, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, description) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
		uuid.NewString(), name, description); err != nil {
		return sessiongate.Role{}, err
	}
	var r sessiongate.Role
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description FROM roles WHERE name = $1`, name).
		Scan(&r.ID, &r.Name, &r.Description)
	return r, err
}

// ListRoles returns every role ordered by name.
func (s *Store) ListRoles(ctx context.Context) ([]sessiongate.Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sessiongate.Role
	for rows.Next() {
		var r sessiongate.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) FindRoleByID(ctx context.Context, roleID string) (sessiongate.Role, error) {
	if _, err := uuid.Parse(roleID); err != nil {
		return sessiongate.Role{}, sessiongate.ErrRoleNotFound
	}
	var r sessiongate.Role
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description FROM roles WHERE id = $1`, roleID).
		Scan(&r.ID, &r.Name, &r.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return sessiongate.Role{}, sessiongate.ErrRoleNotFound
	}
	return r, err
}

// CreateAttribute registers an attribute name. Existing names are kept.
func (s *Store) CreateAttribute(ctx context.Context, name, description string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO role_attributes (id, name, description) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
		uuid.NewString(), name, description)
	return err
}

// SetRoleAttribute upserts one mapping row. An unknown attribute name is
// ErrInvalidInput.
func (s *Store) SetRoleAttribute(ctx context.Context, roleID, attribute string, value bool) error {
	if _, err := s.FindRoleByID(ctx, roleID); err != nil {
		return err
	}
	var attrID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM role_attributes WHERE name = $1`, attribute).Scan(&attrID)
	if errors.Is(err, sql.ErrNoRows) {
		return sessiongate.ErrInvalidInput
	}
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO role_attributes_mapper (role_id, attributes_id, value) VALUES ($1, $2, $3)
		 ON CONFLICT (role_id, attributes_id) DO UPDATE SET value = EXCLUDED.value`,
		roleID, attrID, value)
	return err
}

func (s *Store) roleHasUsers(ctx context.Context, roleID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM role_mapper WHERE role_id = $1)`, roleID).Scan(&exists)
	return exists, err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
