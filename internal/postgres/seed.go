package postgres

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessiongate"
)

// Seed creates the attribute catalogue, the default roles and, when
// opts.AdminEmail is set and nobody holds the super-admin role, an admin
// account holding it. Running it twice changes nothing.
func Seed(ctx context.Context, s *Store, opts sessiongate.SeedOptions) error {
	for _, attr := range opts.Attributes {
		if err := s.CreateAttribute(ctx, attr.Name, attr.Description); err != nil {
			return err
		}
	}

	var superRole sessiongate.Role
	for _, r := range sessiongate.DefaultRoles(opts.SuperAdminRole) {
		created, err := s.CreateRole(ctx, r.Name, r.Description)
		if err != nil {
			return err
		}
		if r.Name == opts.SuperAdminRole {
			superRole = created
		}
	}

	if opts.AdminEmail == "" {
		return nil
	}
	taken, err := s.roleHasUsers(ctx, superRole.ID)
	if err != nil || taken {
		return err
	}

	admin, err := s.FindUserByEmail(ctx, opts.AdminEmail)
	if errors.Is(err, sessiongate.ErrUserNotFound) {
		admin, err = s.CreateUser(ctx, sessiongate.CreateUserInput{
			Email:        opts.AdminEmail,
			FirstName:    opts.AdminFirstName,
			LastName:     opts.AdminLastName,
			PasswordHash: opts.AdminPasswordHash,
		})
	}
	if err != nil {
		return err
	}
	return s.AssignRole(ctx, admin.UserID, superRole.Name)
}
