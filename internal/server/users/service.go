// Package users implements administrative user management: account creation
// and role-membership changes, with the permission cache kept in step.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/logging"
	"github.com/nexuskit/authkeeper/internal/server/auth"
	"github.com/nexuskit/authkeeper/internal/server/models"
	usersrepo "github.com/nexuskit/authkeeper/internal/server/repositories/users"
)

// Invalidator evicts a user's cached permission set. Implemented by
// permissions.Resolver.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
}

// Service provides user management on top of the repository. Mutations that
// change what a user may do invalidate that user's permission cache before
// returning, so the next permission read recomputes from the database.
type Service struct {
	repo        usersrepo.Repository
	invalidator Invalidator
	log         logging.Logger
}

func NewService(repo usersrepo.Repository, invalidator Invalidator, log logging.Logger) *Service {
	return &Service{repo: repo, invalidator: invalidator, log: log}
}

// Create registers a new account with a bcrypt-hashed password and assigns
// the given roles.
func (s *Service) Create(ctx context.Context, username, email, fullName, password string, superuser bool, roles []string) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  superuser,
	}

	user, err = s.repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	if len(roles) > 0 {
		if err := s.SetRoles(ctx, user.ID, roles); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// SetRoles replaces the user's role memberships. The permission cache entry
// is invalidated before returning: a permission check issued after SetRoles
// completes never sees the pre-mutation set.
func (s *Service) SetRoles(ctx context.Context, userID string, roles []string) error {
	if err := s.repo.SetRoles(ctx, userID, roles); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error setting roles: %w", err)
	}

	if err := s.invalidator.InvalidateUser(ctx, userID); err != nil {
		return fmt.Errorf("error invalidating permissions: %w", err)
	}

	return nil
}

// EnsureAdmin creates the bootstrap superuser if no account with the given
// username exists yet. Returns the existing or newly created account.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	existing, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error checking admin account: %w", err)
	}

	user, err := s.Create(ctx, username, email, "", password, true, []string{"admin"})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "created bootstrap admin account", "username", username)
	return user, nil
}
