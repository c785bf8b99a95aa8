// Package session stores the client's authentication state: the token pair
// and the user snapshot, kept all-or-nothing in a durable key-value backend.
// Several handles can share one store; a mutation through one handle is
// announced to every other handle, which is how separate tabs of the original
// UI observed each other's logins and logouts.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/shared"
)

// Session is the client-side authentication state. It is valid only as a
// whole: tokens without a snapshot (or the reverse) are treated as no session.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *shared.UserSnapshot
}

// Change describes one key mutation, delivered to every handle except the
// one that performed it.
type Change struct {
	Key     string
	Value   []byte
	Deleted bool
}

// Store owns the backend and the handle registry.
type Store struct {
	backend Backend

	mu      sync.Mutex
	nextID  int
	handles map[int]*Handle
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend, handles: make(map[int]*Handle)}
}

// NewHandle registers a new view of the store. Each tab or process part
// holds its own handle.
func (s *Store) NewHandle() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	h := &Handle{store: s, id: s.nextID}
	s.handles[h.id] = h
	return h
}

// Close unregisters the handle; it stops receiving change notifications.
func (s *Store) closeHandle(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, id)
}

// notify delivers changes to every handle except the originator. Callbacks
// run synchronously on the mutating goroutine.
func (s *Store) notify(originID int, changes []Change) {
	s.mu.Lock()
	others := make([]*Handle, 0, len(s.handles))
	for id, h := range s.handles {
		if id != originID {
			others = append(others, h)
		}
	}
	s.mu.Unlock()

	for _, h := range others {
		h.deliver(changes)
	}
}

// Handle is one participant's view of the shared session store.
type Handle struct {
	store *Store
	id    int

	mu       sync.Mutex
	onChange func(Change)
}

// Subscribe registers a callback invoked for every change made through OTHER
// handles of the same store. A nil callback unsubscribes.
func (h *Handle) Subscribe(fn func(Change)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = fn
}

// Close unregisters the handle from the store.
func (h *Handle) Close() {
	h.store.closeHandle(h.id)
}

func (h *Handle) deliver(changes []Change) {
	h.mu.Lock()
	fn := h.onChange
	h.mu.Unlock()
	if fn == nil {
		return
	}
	for _, c := range changes {
		fn(c)
	}
}

// Save persists the full session: both tokens and the serialized snapshot.
func (h *Handle) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.AccessToken == "" || sess.RefreshToken == "" || sess.User == nil {
		return fmt.Errorf("refusing to save incomplete session")
	}

	userRaw, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("failed to serialize user snapshot: %w", err)
	}

	entries := []Change{
		{Key: common.SessionKeyAccessToken, Value: []byte(sess.AccessToken)},
		{Key: common.SessionKeyRefreshToken, Value: []byte(sess.RefreshToken)},
		{Key: common.SessionKeyUser, Value: userRaw},
	}
	for _, e := range entries {
		if err := h.store.backend.Set(ctx, e.Key, e.Value); err != nil {
			return err
		}
	}

	h.store.notify(h.id, entries)
	return nil
}

// SetTokens replaces the access token and, when refresh is non-empty, the
// refresh token. Used after a silent refresh; the snapshot stays untouched.
func (h *Handle) SetTokens(ctx context.Context, access, refresh string) error {
	if access == "" {
		return fmt.Errorf("refusing to save empty access token")
	}

	changes := []Change{{Key: common.SessionKeyAccessToken, Value: []byte(access)}}
	if refresh != "" {
		changes = append(changes, Change{Key: common.SessionKeyRefreshToken, Value: []byte(refresh)})
	}

	for _, c := range changes {
		if err := h.store.backend.Set(ctx, c.Key, c.Value); err != nil {
			return err
		}
	}

	h.store.notify(h.id, changes)
	return nil
}

// Clear destroys the session. Observers of other handles see all three keys
// deleted.
func (h *Handle) Clear(ctx context.Context) error {
	if err := h.store.backend.Clear(ctx); err != nil {
		return err
	}

	h.store.notify(h.id, []Change{
		{Key: common.SessionKeyAccessToken, Deleted: true},
		{Key: common.SessionKeyRefreshToken, Deleted: true},
		{Key: common.SessionKeyUser, Deleted: true},
	})
	return nil
}

// Load returns the stored session. An absent session yields
// common.ErrUnauthenticated. Partial or corrupt state is wiped and reported
// the same way, forcing a clean re-authentication.
func (h *Handle) Load(ctx context.Context) (*Session, error) {
	kv, err := h.store.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	access := kv[common.SessionKeyAccessToken]
	refresh := kv[common.SessionKeyRefreshToken]
	userRaw := kv[common.SessionKeyUser]

	if len(access) == 0 && len(refresh) == 0 && len(userRaw) == 0 {
		return nil, common.ErrUnauthenticated
	}

	if len(access) == 0 || len(refresh) == 0 || len(userRaw) == 0 {
		return nil, h.invalidate(ctx)
	}

	var user shared.UserSnapshot
	if err := json.Unmarshal(userRaw, &user); err != nil {
		return nil, h.invalidate(ctx)
	}

	return &Session{
		AccessToken:  string(access),
		RefreshToken: string(refresh),
		User:         &user,
	}, nil
}

// invalidate wipes partial state and reports the session as absent.
func (h *Handle) invalidate(ctx context.Context) error {
	if err := h.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear invalid session: %w", err)
	}
	return common.ErrUnauthenticated
}

// AccessToken returns just the stored access token, or "" when absent.
func (h *Handle) AccessToken(ctx context.Context) (string, error) {
	v, err := h.store.backend.Get(ctx, common.SessionKeyAccessToken)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// RefreshToken returns just the stored refresh token, or "" when absent.
func (h *Handle) RefreshToken(ctx context.Context) (string, error) {
	v, err := h.store.backend.Get(ctx, common.SessionKeyRefreshToken)
	if err != nil {
		return "", err
	}
	return string(v), nil
}
