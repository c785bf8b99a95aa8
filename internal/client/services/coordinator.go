// Package services contains application services for the authkeeper client.
// This file defines the session coordinator: the state machine driving
// login, logout, idle tracking and cross-handle session adoption.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nexuskit/authkeeper/internal/client/session"
	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/logging"
	"github.com/nexuskit/authkeeper/internal/shared"
)

// State is the coordinator's lifecycle phase.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StateIdleWarning     State = "idle_warning"
)

// Default idle policy: after InactivityTimeout without activity the user is
// warned, and after IdleCountdown more the session is force-closed.
const (
	DefaultInactivityTimeout = 10 * time.Minute
	DefaultIdleCountdown     = 60 * time.Second
)

// APIClient is the slice of the HTTP client the coordinator needs.
//
// Contract:
//   - Login: exchange credentials for a token pair and user snapshot.
//   - Logout: revoke the stored refresh token server-side.
//
// Both must honor context cancellation/timeouts.
type APIClient interface {
	Login(ctx context.Context, username, password string) (*session.Session, error)
	Logout(ctx context.Context) error
}

// Coordinator owns the client's authentication lifecycle. All mutating
// entry points (Login, Logout, Activity, timer callbacks, store change
// notifications) funnel through one mutex; network and storage I/O happen
// outside it so a slow server can never wedge state reads.
type Coordinator struct {
	api     APIClient
	session *session.Handle
	log     logging.Logger

	inactivity *timerCtl
	countdown  *timerCtl

	mu       sync.Mutex
	state    State
	user     *shared.UserSnapshot
	onChange func(State)
}

// NewCoordinator wires the state machine to the API client and session
// handle, and subscribes to mutations made through other handles of the same
// store. Non-positive durations fall back to the defaults.
func NewCoordinator(api APIClient, handle *session.Handle, inactivityTimeout, idleCountdown time.Duration, logger logging.Logger) *Coordinator {
	if inactivityTimeout <= 0 {
		inactivityTimeout = DefaultInactivityTimeout
	}
	if idleCountdown <= 0 {
		idleCountdown = DefaultIdleCountdown
	}

	c := &Coordinator{
		api:     api,
		session: handle,
		log:     logger.With("module", "session_coordinator"),
		state:   StateUnauthenticated,
	}
	c.inactivity = newTimerCtl(inactivityTimeout, c.onInactivityExpired)
	c.countdown = newTimerCtl(idleCountdown, c.onCountdownExpired)
	handle.Subscribe(c.onStoreChange)
	return c
}

// Close detaches the coordinator from the store and disarms its timers. The
// session handle itself stays open; its owner closes it.
func (c *Coordinator) Close() {
	c.session.Subscribe(nil)
	c.inactivity.Stop()
	c.countdown.Stop()
}

// Login authenticates against the server, persists the session and starts
// idle tracking. The error for bad credentials is common.ErrInvalidCredentials
// regardless of whether the username, the password or the account is at fault.
func (c *Coordinator) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	if c.state == StateAuthenticating {
		c.mu.Unlock()
		return fmt.Errorf("login already in progress")
	}
	notify := c.setStateLocked(StateAuthenticating)
	c.mu.Unlock()
	notify()

	sess, err := c.api.Login(ctx, username, password)
	if err != nil {
		c.drop()
		return err
	}

	if err := c.session.Save(ctx, sess); err != nil {
		c.drop()
		return fmt.Errorf("failed to persist session: %w", err)
	}

	c.adopt(sess.User)
	c.log.Info(ctx, "logged in", "username", sess.User.Username)
	return nil
}

// Logout revokes the refresh token server-side on a best-effort basis, then
// destroys the local session. A dead network must never trap the user in a
// session, so server errors are logged and swallowed.
func (c *Coordinator) Logout(ctx context.Context) error {
	if err := c.api.Logout(ctx); err != nil {
		c.log.Warn(ctx, "server logout failed, clearing local session anyway", "error", err)
	}

	if err := c.session.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	c.drop()
	c.log.Info(ctx, "logged out")
	return nil
}

// Restore loads the persisted session at startup. A complete session makes
// the coordinator Authenticated immediately; whether the tokens are still
// good is settled lazily by the first authenticated request.
func (c *Coordinator) Restore(ctx context.Context) error {
	sess, err := c.session.Load(ctx)
	if err != nil {
		if errors.Is(err, common.ErrUnauthenticated) {
			c.drop()
			return nil
		}
		return err
	}

	c.adopt(sess.User)
	return nil
}

// Activity marks the user as active: it re-arms the inactivity timer, and
// during an idle warning it cancels the countdown and returns the session to
// Authenticated.
func (c *Coordinator) Activity() {
	c.mu.Lock()
	notify := func() {}
	switch c.state {
	case StateAuthenticated:
		c.inactivity.Start()
	case StateIdleWarning:
		c.countdown.Stop()
		c.inactivity.Start()
		notify = c.setStateLocked(StateAuthenticated)
	}
	c.mu.Unlock()
	notify()
}

// State returns the current lifecycle phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentUser returns the snapshot adopted at login, or nil.
func (c *Coordinator) CurrentUser() *shared.UserSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// HasPermission reports whether the current user holds the permission.
// Superusers hold everything; an absent user holds nothing.
func (c *Coordinator) HasPermission(permission string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user.Can(permission)
}

// OnChange registers a callback invoked after every state transition. It is
// called outside the coordinator's lock, so it may call back into the
// coordinator; with concurrent transitions the delivery order is not
// guaranteed.
func (c *Coordinator) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// setStateLocked records the transition and returns the notification to run
// once the lock is released. Callers must hold c.mu.
func (c *Coordinator) setStateLocked(s State) func() {
	if c.state == s {
		return func() {}
	}
	c.state = s
	fn := c.onChange
	if fn == nil {
		return func() {}
	}
	return func() { fn(s) }
}

// adopt installs the snapshot, arms idle tracking and enters Authenticated.
func (c *Coordinator) adopt(user *shared.UserSnapshot) {
	c.mu.Lock()
	c.user = user
	c.countdown.Stop()
	c.inactivity.Start()
	notify := c.setStateLocked(StateAuthenticated)
	c.mu.Unlock()
	notify()
}

// drop resets to Unauthenticated and disarms the idle timers.
func (c *Coordinator) drop() {
	c.mu.Lock()
	c.user = nil
	c.inactivity.Stop()
	c.countdown.Stop()
	notify := c.setStateLocked(StateUnauthenticated)
	c.mu.Unlock()
	notify()
}

// onInactivityExpired fires when the inactivity timer runs out: warn and
// start the final countdown.
func (c *Coordinator) onInactivityExpired() {
	c.mu.Lock()
	if c.state != StateAuthenticated {
		c.mu.Unlock()
		return
	}
	c.countdown.Start()
	notify := c.setStateLocked(StateIdleWarning)
	c.mu.Unlock()
	notify()

	c.log.Info(context.Background(), "session idle, logout countdown started")
}

// onCountdownExpired force-closes the session. The transition is decided
// under the lock first; revocation and storage cleanup follow best-effort,
// so an Activity call racing the expiry loses cleanly.
func (c *Coordinator) onCountdownExpired() {
	c.mu.Lock()
	if c.state != StateIdleWarning {
		c.mu.Unlock()
		return
	}
	c.user = nil
	c.inactivity.Stop()
	notify := c.setStateLocked(StateUnauthenticated)
	c.mu.Unlock()
	notify()

	ctx := context.Background()
	c.log.Info(ctx, "idle countdown expired, logging out")
	if err := c.api.Logout(ctx); err != nil {
		c.log.Warn(ctx, "server logout failed", "error", err)
	}
	if err := c.session.Clear(ctx); err != nil {
		c.log.Warn(ctx, "failed to clear session", "error", err)
	}
}

// onStoreChange reacts to mutations made through OTHER handles of the same
// store: an external logout drops this coordinator to Unauthenticated with
// no network traffic, an external login is adopted as-is.
func (c *Coordinator) onStoreChange(change session.Change) {
	switch {
	case change.Deleted && change.Key == common.SessionKeyAccessToken:
		c.mu.Lock()
		if c.state == StateUnauthenticated {
			c.mu.Unlock()
			return
		}
		c.user = nil
		c.inactivity.Stop()
		c.countdown.Stop()
		notify := c.setStateLocked(StateUnauthenticated)
		c.mu.Unlock()
		notify()

	case !change.Deleted && change.Key == common.SessionKeyUser:
		var snap shared.UserSnapshot
		if err := json.Unmarshal(change.Value, &snap); err != nil {
			c.log.Warn(context.Background(), "ignoring unreadable snapshot from another handle", "error", err)
			return
		}
		c.adopt(&snap)
	}
}
