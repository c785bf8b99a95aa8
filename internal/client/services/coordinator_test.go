package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuskit/authkeeper/internal/client/session"
	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/logging"
	"github.com/nexuskit/authkeeper/internal/shared"
)

// fakeAPI implements APIClient for coordinator tests. Counters are guarded
// because timer callbacks call Logout from their own goroutine.
type fakeAPI struct {
	mu       sync.Mutex
	loginFn  func(ctx context.Context, username, password string) (*session.Session, error)
	logoutFn func(ctx context.Context) error

	loginCalls  int
	logoutCalls int
}

func (f *fakeAPI) Login(ctx context.Context, username, password string) (*session.Session, error) {
	f.mu.Lock()
	f.loginCalls++
	fn := f.loginFn
	f.mu.Unlock()
	if fn == nil {
		return testClientSession(), nil
	}
	return fn(ctx, username, password)
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.mu.Lock()
	f.logoutCalls++
	fn := f.logoutFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (f *fakeAPI) logouts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutCalls
}

func (f *fakeAPI) logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

func testClientSession() *session.Session {
	return &session.Session{
		AccessToken:  "acc-1",
		RefreshToken: "ref-1",
		User: &shared.UserSnapshot{
			ID:          "u-1",
			Username:    "alice",
			IsActive:    true,
			Roles:       []string{"operator"},
			Permissions: []string{"auth.view_user", "auth.add_user"},
		},
	}
}

// transitionLog records state changes delivered via OnChange.
type transitionLog struct {
	mu     sync.Mutex
	states []State
}

func (l *transitionLog) record(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *transitionLog) list() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func newTestCoordinator(t *testing.T, api *fakeAPI, inactivity, countdown time.Duration) (*Coordinator, *session.Store) {
	t.Helper()
	store := session.NewStore(session.NewMemoryBackend())
	h := store.NewHandle()
	c := NewCoordinator(api, h, inactivity, countdown, logging.NewDiscard())
	t.Cleanup(func() {
		c.Close()
		h.Close()
	})
	return c, store
}

func TestCoordinator_LoginSuccess(t *testing.T) {
	api := &fakeAPI{}
	c, store := newTestCoordinator(t, api, time.Minute, time.Minute)

	log := &transitionLog{}
	c.OnChange(log.record)

	require.NoError(t, c.Login(context.Background(), "alice", "secret"))

	assert.Equal(t, StateAuthenticated, c.State())
	require.NotNil(t, c.CurrentUser())
	assert.Equal(t, "alice", c.CurrentUser().Username)
	assert.Equal(t, []State{StateAuthenticating, StateAuthenticated}, log.list())

	// The session must be durable, visible through any handle.
	other := store.NewHandle()
	defer other.Close()
	sess, err := other.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acc-1", sess.AccessToken)
}

func TestCoordinator_LoginFailure(t *testing.T) {
	api := &fakeAPI{
		loginFn: func(ctx context.Context, username, password string) (*session.Session, error) {
			return nil, common.ErrInvalidCredentials
		},
	}
	c, store := newTestCoordinator(t, api, time.Minute, time.Minute)

	err := c.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Equal(t, StateUnauthenticated, c.State())
	assert.Nil(t, c.CurrentUser())

	other := store.NewHandle()
	defer other.Close()
	_, err = other.Load(context.Background())
	require.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestCoordinator_LogoutClearsEvenWhenServerFails(t *testing.T) {
	api := &fakeAPI{
		logoutFn: func(ctx context.Context) error {
			return common.ErrNetworkTimeout
		},
	}
	c, store := newTestCoordinator(t, api, time.Minute, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "alice", "secret"))
	require.NoError(t, c.Logout(ctx))

	assert.Equal(t, StateUnauthenticated, c.State())
	assert.Equal(t, 1, api.logouts())

	other := store.NewHandle()
	defer other.Close()
	_, err := other.Load(ctx)
	require.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestCoordinator_HasPermission(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newTestCoordinator(t, api, time.Minute, time.Minute)

	assert.False(t, c.HasPermission("auth.view_user"), "no user, no permissions")

	require.NoError(t, c.Login(context.Background(), "alice", "secret"))

	assert.True(t, c.HasPermission("auth.view_user"))
	assert.True(t, c.HasPermission("auth.add_user"))
	assert.False(t, c.HasPermission("auth.delete_user"))
}

func TestCoordinator_HasPermissionSuperuser(t *testing.T) {
	api := &fakeAPI{
		loginFn: func(ctx context.Context, username, password string) (*session.Session, error) {
			s := testClientSession()
			s.User.IsSuperuser = true
			s.User.Permissions = nil
			return s, nil
		},
	}
	c, _ := newTestCoordinator(t, api, time.Minute, time.Minute)

	require.NoError(t, c.Login(context.Background(), "admin", "secret"))
	assert.True(t, c.HasPermission("auth.delete_user"))
	assert.True(t, c.HasPermission("anything.at_all"))
}

func TestCoordinator_IdleWarningThenForcedLogout(t *testing.T) {
	api := &fakeAPI{}
	c, store := newTestCoordinator(t, api, 30*time.Millisecond, 30*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "alice", "secret"))

	require.Eventually(t, func() bool {
		return c.State() == StateIdleWarning
	}, time.Second, 5*time.Millisecond, "inactivity should trigger the warning")

	require.Eventually(t, func() bool {
		return c.State() == StateUnauthenticated
	}, time.Second, 5*time.Millisecond, "countdown should force the logout")

	require.Eventually(t, func() bool {
		return api.logouts() == 1
	}, time.Second, 5*time.Millisecond, "forced logout should revoke server-side")

	other := store.NewHandle()
	defer other.Close()
	require.Eventually(t, func() bool {
		_, err := other.Load(ctx)
		return err != nil
	}, time.Second, 5*time.Millisecond, "forced logout should clear the store")
}

func TestCoordinator_ActivityDuringWarningRestoresSession(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newTestCoordinator(t, api, 30*time.Millisecond, time.Minute)

	require.NoError(t, c.Login(context.Background(), "alice", "secret"))

	require.Eventually(t, func() bool {
		return c.State() == StateIdleWarning
	}, time.Second, 5*time.Millisecond)

	c.Activity()

	assert.Equal(t, StateAuthenticated, c.State())
	assert.Zero(t, api.logouts())
	require.NotNil(t, c.CurrentUser(), "dismissing the warning keeps the user")
}

func TestCoordinator_ActivityResetsInactivityTimer(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newTestCoordinator(t, api, 100*time.Millisecond, time.Minute)

	require.NoError(t, c.Login(context.Background(), "alice", "secret"))

	// Keep poking well inside the timeout; the warning must never fire.
	for i := 0; i < 6; i++ {
		time.Sleep(25 * time.Millisecond)
		c.Activity()
		require.Equal(t, StateAuthenticated, c.State())
	}
}

func TestCoordinator_ExternalClearDropsSessionWithoutNetwork(t *testing.T) {
	api := &fakeAPI{}
	c, store := newTestCoordinator(t, api, time.Minute, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "alice", "secret"))

	other := store.NewHandle()
	defer other.Close()
	require.NoError(t, other.Clear(ctx))

	assert.Equal(t, StateUnauthenticated, c.State())
	assert.Nil(t, c.CurrentUser())
	assert.Zero(t, api.logouts(), "an external logout needs no network call")
}

func TestCoordinator_ExternalLoginIsAdopted(t *testing.T) {
	api := &fakeAPI{}
	c, store := newTestCoordinator(t, api, time.Minute, time.Minute)
	ctx := context.Background()

	require.Equal(t, StateUnauthenticated, c.State())

	other := store.NewHandle()
	defer other.Close()
	require.NoError(t, other.Save(ctx, testClientSession()))

	assert.Equal(t, StateAuthenticated, c.State())
	require.NotNil(t, c.CurrentUser())
	assert.Equal(t, "alice", c.CurrentUser().Username)
	assert.Zero(t, api.logins(), "adoption must not hit the server")
}

func TestCoordinator_RestorePersistedSession(t *testing.T) {
	api := &fakeAPI{}
	store := session.NewStore(session.NewMemoryBackend())
	seed := store.NewHandle()
	require.NoError(t, seed.Save(context.Background(), testClientSession()))
	seed.Close()

	h := store.NewHandle()
	c := NewCoordinator(api, h, time.Minute, time.Minute, logging.NewDiscard())
	t.Cleanup(func() {
		c.Close()
		h.Close()
	})

	require.NoError(t, c.Restore(context.Background()))
	assert.Equal(t, StateAuthenticated, c.State())
	require.NotNil(t, c.CurrentUser())
	assert.Equal(t, "alice", c.CurrentUser().Username)
}

func TestCoordinator_RestoreEmptyStore(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newTestCoordinator(t, api, time.Minute, time.Minute)

	require.NoError(t, c.Restore(context.Background()))
	assert.Equal(t, StateUnauthenticated, c.State())
}
