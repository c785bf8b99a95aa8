package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/logging"
	"github.com/nexuskit/authkeeper/internal/server/auth"
	"github.com/nexuskit/authkeeper/internal/server/models"
)

type fakeRepo struct {
	users     map[string]*models.User
	roles     map[string][]string
	nextID    int
	callOrder *[]string

	setRolesErr error
}

func newFakeRepo(order *[]string) *fakeRepo {
	return &fakeRepo{
		users:     make(map[string]*models.User),
		roles:     make(map[string][]string),
		callOrder: order,
	}
}

func (f *fakeRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.nextID++
	u.ID = string(rune('a' + f.nextID - 1))
	u.DateJoined = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error { return nil }

func (f *fakeRepo) RolesOf(ctx context.Context, id string) ([]string, error) {
	return f.roles[id], nil
}

func (f *fakeRepo) PermissionsOf(ctx context.Context, id string) ([]string, error) {
	return nil, nil
}

func (f *fakeRepo) AllPermissions(ctx context.Context) ([]string, error) { return nil, nil }

func (f *fakeRepo) SetRoles(ctx context.Context, id string, roles []string) error {
	if f.callOrder != nil {
		*f.callOrder = append(*f.callOrder, "repo.SetRoles")
	}
	if f.setRolesErr != nil {
		return f.setRolesErr
	}
	f.roles[id] = roles
	return nil
}

type fakeInvalidator struct {
	callOrder *[]string
	userIDs   []string
	err       error
}

func (f *fakeInvalidator) InvalidateUser(ctx context.Context, userID string) error {
	if f.callOrder != nil {
		*f.callOrder = append(*f.callOrder, "invalidator.InvalidateUser")
	}
	f.userIDs = append(f.userIDs, userID)
	return f.err
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeInvalidator, *[]string) {
	t.Helper()
	order := &[]string{}
	repo := newFakeRepo(order)
	inv := &fakeInvalidator{callOrder: order}
	return NewService(repo, inv, logging.NewDiscard()), repo, inv, order
}

func TestCreate_HashesPasswordAndAssignsRoles(t *testing.T) {
	svc, repo, inv, _ := newTestService(t)

	u, err := svc.Create(context.Background(), "alice", "alice@example.com", "Alice Cooper", "s3cret", false, []string{"editor"})
	require.NoError(t, err)

	require.NotEqual(t, "s3cret", u.PasswordHash)
	require.True(t, auth.CheckPassword(u.PasswordHash, "s3cret"))
	require.Equal(t, []string{"editor"}, repo.roles[u.ID])
	require.Equal(t, []string{u.ID}, inv.userIDs)
}

func TestSetRoles_InvalidatesAfterPersisting(t *testing.T) {
	svc, repo, inv, order := newTestService(t)
	u, err := repo.Create(context.Background(), &models.User{Username: "alice"})
	require.NoError(t, err)

	require.NoError(t, svc.SetRoles(context.Background(), u.ID, []string{"admin", "editor"}))

	require.Equal(t, []string{"repo.SetRoles", "invalidator.InvalidateUser"}, *order)
	require.Equal(t, []string{u.ID}, inv.userIDs)
	require.Equal(t, []string{"admin", "editor"}, repo.roles[u.ID])
}

func TestSetRoles_UnknownRolePassesThroughNotFound(t *testing.T) {
	svc, repo, inv, _ := newTestService(t)
	repo.setRolesErr = common.ErrorNotFound

	err := svc.SetRoles(context.Background(), "u-1", []string{"ghost"})
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.Empty(t, inv.userIDs, "failed persist must not invalidate")
}

func TestSetRoles_InvalidationErrorPropagates(t *testing.T) {
	svc, _, inv, _ := newTestService(t)
	inv.err = errors.New("cache unreachable")

	err := svc.SetRoles(context.Background(), "u-1", []string{"editor"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "cache unreachable")
}

func TestEnsureAdmin_CreatesOnce(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	first, err := svc.EnsureAdmin(context.Background(), "admin", "admin@example.com", "changeme")
	require.NoError(t, err)
	require.True(t, first.IsSuperuser)
	require.True(t, first.IsActive)

	second, err := svc.EnsureAdmin(context.Background(), "admin", "admin@example.com", "changeme")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.users, 1)
}
