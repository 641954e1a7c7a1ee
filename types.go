package sessiongate

import (
	"context"
	"time"
)

// UserRecord is the credential-store view of a user.
type UserRecord struct {
	UserID                string
	Email                 string
	FirstName             string
	LastName              string
	Phone                 string
	PasswordHash          string
	Enabled               bool
	PasswordResetRequired bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CreateUserInput carries the fields needed to insert a user row.
type CreateUserInput struct {
	Email        string
	FirstName    string
	LastName     string
	Phone        string
	PasswordHash string
}

// UserProvider is the credential store the engine authenticates against.
//
// Lookups return ErrUserNotFound when no row matches. CreateUser returns
// ErrAccountExists on a duplicate email.
type UserProvider interface {
	FindUserByID(ctx context.Context, userID string) (UserRecord, error)
	FindUserByEmail(ctx context.Context, email string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdateUserPasswordHash(ctx context.Context, userID, passwordHash string) error
	SetForcedResetFlag(ctx context.Context, userID string, required bool) error
}

// Role is a named group of attribute mappings.
type Role struct {
	ID          string
	Name        string
	Description string
}

// AttributeMapping is one role_attributes_mapper row joined to its attribute name.
type AttributeMapping struct {
	Attribute string
	Value     bool
}

// RoleProvider resolves the single role held by a user and the role's mappings.
// FindRoleForUser returns ErrRoleNotFound when the user has no role.
// AssignRole replaces any role the user held; an unknown role name is ErrRoleNotFound.
type RoleProvider interface {
	FindRoleForUser(ctx context.Context, userID string) (Role, error)
	ListAttributeMappingsForRole(ctx context.Context, roleID string) ([]AttributeMapping, error)
	AssignRole(ctx context.Context, userID, roleName string) error
}

// LedgerSession is the durable mirror of an ephemeral session.
type LedgerSession struct {
	ID          string
	UserID      string
	AccessToken string
	IPAddress   string
	UserAgent   string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// SessionLedger persists sessions for audit, listing, and forced logout.
// It is eventually consistent with the ephemeral store.
type SessionLedger interface {
	CreateSession(ctx context.Context, session LedgerSession) error
	ExtendSession(ctx context.Context, sessionID, accessToken string, expiresAt, updatedAt time.Time) error
	DeactivateSession(ctx context.Context, userID, sessionID string) error
	// DeactivateUserSessions marks every active row for userID inactive and
	// returns the ids of the user's inactive rows.
	DeactivateUserSessions(ctx context.Context, userID string) ([]string, error)
	// ListUserSessions returns the user's active rows, newest first.
	ListUserSessions(ctx context.Context, userID string) ([]LedgerSession, error)
}

// SessionInfo is the listing view of one ledger row. It carries no token
// material.
type SessionInfo struct {
	SessionID string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Sweeper removes ledger rows that are expired or inactive.
type Sweeper interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// ResetTokenRecord is the ledger row backing a password reset token.
type ResetTokenRecord struct {
	ID        string
	UserID    string
	Token     string
	Used      bool
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// ResetLedger enforces single use of password reset tokens.
// FindActiveResetToken returns ErrPasswordResetInvalid when no unused,
// unexpired row matches both token and userID.
type ResetLedger interface {
	CreateResetToken(ctx context.Context, record ResetTokenRecord) error
	FindActiveResetToken(ctx context.Context, token, userID string, now time.Time) (ResetTokenRecord, error)
	MarkResetTokenUsed(ctx context.Context, id string, now time.Time) error
}

// LoginAttempt is one append-only authentication log entry.
type LoginAttempt struct {
	UserID        string
	Email         string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	CreatedAt     time.Time
}

// RegisterRequest is the input of Engine.Register.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// LoginResult is returned by Register, Login, and ResetPassword.
//
// When ResetRequired is set the session fields are empty and the caller holds
// only ResetToken; the login is deferred until the password is replaced.
type LoginResult struct {
	User             UserRecord
	SessionID        string
	AccessToken      string
	SessionExpiresAt time.Time

	ResetRequired  bool
	ResetToken     string
	ResetExpiresAt time.Time
}

// AuthResult is what the authentication gate hands to protected handlers.
type AuthResult struct {
	UserID    string
	Email     string
	SessionID string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// User is the credential-store row read by the gate. PasswordHash is empty.
	User UserRecord
}

// IssuedSession is a session written to both stores and its bound access token.
type IssuedSession struct {
	SessionID   string
	AccessToken string
	ExpiresAt   time.Time
}

// RefreshResult is returned by Engine.Refresh.
type RefreshResult struct {
	UserID           string
	SessionID        string
	AccessToken      string
	SessionExpiresAt time.Time
}

// Decision is the outcome of an RBAC check. Missing lists the required
// attributes the user does not hold; it is for logs, not for clients.
type Decision struct {
	Granted bool
	Missing []string
}

// ResetTokenInfo describes a reset token that passed ValidateResetToken.
type ResetTokenInfo struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// SeedOptions is the default data written by the store Seed functions.
// The admin account is only created when AdminEmail is set and no user holds
// the super-admin role yet.
type SeedOptions struct {
	SuperAdminRole    string
	Attributes        []AttributeDef
	AdminEmail        string
	AdminPasswordHash string
	AdminFirstName    string
	AdminLastName     string
}

// DefaultRoles returns the roles created by seeding: the super-admin role,
// "admin" when it differs from the super-admin role, and "user".
func DefaultRoles(superAdminRole string) []Role {
	roles := []Role{{Name: superAdminRole, Description: "Super administrator role with full system access"}}
	if superAdminRole != "admin" {
		roles = append(roles, Role{Name: "admin", Description: "Administrator role with most management permissions"})
	}
	if superAdminRole != "user" {
		roles = append(roles, Role{Name: "user", Description: "Regular user role with basic permissions"})
	}
	return roles
}
