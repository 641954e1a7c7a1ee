package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/sessiongate"
	"github.com/google/uuid"
)

// Store keeps users, roles, ledgers and login attempts in process memory.
// It implements every collaborator interface the engine consumes.
type Store struct {
	mu sync.RWMutex

	now func() time.Time

	users       map[string]sessiongate.UserRecord
	usersByMail map[string]string

	roles       map[string]sessiongate.Role
	rolesByName map[string]string
	attributes  map[string]string // name -> description
	userRole    map[string]string // user id -> role id
	roleAttrs   map[string]map[string]bool

	sessions map[string]sessiongate.LedgerSession
	resets   map[string]sessiongate.ResetTokenRecord

	attempts []sessiongate.LoginAttempt
}

var (
	_ sessiongate.UserProvider  = (*Store)(nil)
	_ sessiongate.RoleProvider  = (*Store)(nil)
	_ sessiongate.SessionLedger = (*Store)(nil)
	_ sessiongate.ResetLedger   = (*Store)(nil)
	_ sessiongate.Sweeper       = (*Store)(nil)
	_ sessiongate.AuditSink     = (*Store)(nil)
)

// New returns an empty Store using time.Now for row timestamps.
func New() *Store {
	return &Store{
		now:         time.Now,
		users:       make(map[string]sessiongate.UserRecord),
		usersByMail: make(map[string]string),
		roles:       make(map[string]sessiongate.Role),
		rolesByName: make(map[string]string),
		attributes:  make(map[string]string),
		userRole:    make(map[string]string),
		roleAttrs:   make(map[string]map[string]bool),
		sessions:    make(map[string]sessiongate.LedgerSession),
		resets:      make(map[string]sessiongate.ResetTokenRecord),
	}
}

// WithClock overrides the clock used for created_at and updated_at.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

/*
====================================
USERS
====================================
*/

func (s *Store) FindUserByID(_ context.Context, userID string) (sessiongate.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return sessiongate.UserRecord{}, sessiongate.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (sessiongate.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByMail[normalizeEmail(email)]
	if !ok {
		return sessiongate.UserRecord{}, sessiongate.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *Store) CreateUser(_ context.Context, input sessiongate.CreateUserInput) (sessiongate.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(input.Email)
	if _, exists := s.usersByMail[email]; exists {
		return sessiongate.UserRecord{}, sessiongate.ErrAccountExists
	}

	now := s.now()
	u := sessiongate.UserRecord{
		UserID:       uuid.NewString(),
		Email:        email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		PasswordHash: input.PasswordHash,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.UserID] = u
	s.usersByMail[email] = u.UserID
	return u, nil
}

func (s *Store) UpdateUserPasswordHash(_ context.Context, userID, passwordHash string) error {
	return s.updateUser(userID, func(u *sessiongate.UserRecord) { u.PasswordHash = passwordHash })
}

func (s *Store) SetForcedResetFlag(_ context.Context, userID string, required bool) error {
	return s.updateUser(userID, func(u *sessiongate.UserRecord) { u.PasswordResetRequired = required })
}

// SetUserEnabled enables or disables a user.
func (s *Store) SetUserEnabled(_ context.Context, userID string, enabled bool) error {
	return s.updateUser(userID, func(u *sessiongate.UserRecord) { u.Enabled = enabled })
}

// ListUsers returns every user ordered by creation time.
func (s *Store) ListUsers(_ context.Context) ([]sessiongate.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]sessiongate.UserRecord, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) updateUser(userID string, mutate func(*sessiongate.UserRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return sessiongate.ErrUserNotFound
	}
	mutate(&u)
	u.UpdatedAt = s.now()
	s.users[userID] = u
	return nil
}

/*
====================================
ROLES
====================================
*/

func (s *Store) FindRoleForUser(_ context.Context, userID string) (sessiongate.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roleID, ok := s.userRole[userID]
	if !ok {
		return sessiongate.Role{}, sessiongate.ErrRoleNotFound
	}
	role, ok := s.roles[roleID]
	if !ok {
		return sessiongate.Role{}, sessiongate.ErrRoleNotFound
	}
	return role, nil
}

func (s *Store) ListAttributeMappingsForRole(_ context.Context, roleID string) ([]sessiongate.AttributeMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mapped := s.roleAttrs[roleID]
	out := make([]sessiongate.AttributeMapping, 0, len(mapped))
	for name, v := range mapped {
		out = append(out, sessiongate.AttributeMapping{Attribute: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attribute < out[j].Attribute })
	return out, nil
}

func (s *Store) AssignRole(_ context.Context, userID, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return sessiongate.ErrUserNotFound
	}
	roleID, ok := s.rolesByName[roleName]
	if !ok {
		return sessiongate.ErrRoleNotFound
	}
	s.userRole[userID] = roleID
	return nil
}

// CreateRole inserts a role, or returns the existing one with the same name.
func (s *Store) CreateRole(_ context.Context, name, description string) (sessiongate.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.rolesByName[name]; ok {
		return s.roles[id], nil
	}
	role := sessiongate.Role{ID: uuid.NewString(), Name: name, Description: description}
	s.roles[role.ID] = role
	s.rolesByName[name] = role.ID
	return role, nil
}

// ListRoles returns every role ordered by name.
func (s *Store) ListRoles(_ context.Context) ([]sessiongate.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]sessiongate.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindRoleByID returns ErrRoleNotFound for an unknown id.
func (s *Store) FindRoleByID(_ context.Context, roleID string) (sessiongate.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[roleID]
	if !ok {
		return sessiongate.Role{}, sessiongate.ErrRoleNotFound
	}
	return role, nil
}

// CreateAttribute registers a known attribute name. Existing names are kept.
func (s *Store) CreateAttribute(_ context.Context, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attributes[name]; !ok {
		s.attributes[name] = description
	}
	return nil
}

// SetRoleAttribute upserts one mapping row. The attribute must exist.
func (s *Store) SetRoleAttribute(_ context.Context, roleID, attribute string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[roleID]; !ok {
		return sessiongate.ErrRoleNotFound
	}
	if _, ok := s.attributes[attribute]; !ok {
		return sessiongate.ErrInvalidInput
	}
	mapped := s.roleAttrs[roleID]
	if mapped == nil {
		mapped = make(map[string]bool)
		s.roleAttrs[roleID] = mapped
	}
	mapped[attribute] = value
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
