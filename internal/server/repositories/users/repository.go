// Package users stores accounts, roles and the permission catalog.
package users

import (
	"context"
	"time"

	"github.com/nexuskit/authkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	// RolesOf returns the names of the user's roles.
	RolesOf(ctx context.Context, userID string) ([]string, error)
	// PermissionsOf returns the union of permission codenames across the
	// user's roles.
	PermissionsOf(ctx context.Context, userID string) ([]string, error)
	// AllPermissions returns the full catalog of permission codenames.
	AllPermissions(ctx context.Context) ([]string, error)
	// SetRoles replaces the user's role memberships with the named roles.
	SetRoles(ctx context.Context, userID string, roleNames []string) error
}
