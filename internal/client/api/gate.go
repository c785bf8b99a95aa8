package api

import (
	"context"
	"sync"
)

// refreshGate serializes token refreshes. However many requests hit a 401 at
// the same moment, exactly one performs the /auth/refresh round trip; the
// rest park until the leader reports its outcome.
type refreshGate struct {
	mu       sync.Mutex
	inFlight bool
	waiters  []chan error
}

// do runs fn as the refresh leader, or parks until the leader already in
// flight finishes. Waiter channels are buffered so an abandoned waiter never
// blocks the leader's broadcast; a waiter whose context ends leaves alone,
// the refresh itself keeps going.
func (g *refreshGate) do(ctx context.Context, fn func() error) error {
	g.mu.Lock()
	if g.inFlight {
		ch := make(chan error, 1)
		g.waiters = append(g.waiters, ch)
		g.mu.Unlock()

		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	g.inFlight = true
	g.mu.Unlock()

	err := fn()

	g.mu.Lock()
	waiters := g.waiters
	g.waiters = nil
	g.inFlight = false
	g.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
	return err
}
