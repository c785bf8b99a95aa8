package ratelimit

import (
	"context"
	"sync"
	"time"
)

// keys are swept for dead entries at most once per sweepEvery calls.
const sweepEvery = 1024

// SlidingWindow is an in-process Limiter keeping per-key event timestamps.
type SlidingWindow struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	events map[string][]time.Time
	calls  uint64

	// now is a test seam.
	now func() time.Time
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (s *SlidingWindow) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.window)

	kept := pruneBefore(s.events[key], cutoff)

	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(cutoff)
	}

	if len(kept) >= s.limit {
		s.events[key] = kept
		// The attempt unblocks once the oldest of the newest `limit` events
		// leaves the window.
		blocking := kept[len(kept)-s.limit]
		return false, blocking.Add(s.window).Sub(now), nil
	}

	s.events[key] = append(kept, now)
	return true, 0, nil
}

func pruneBefore(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return events
	}
	return append([]time.Time(nil), events[i:]...)
}

func (s *SlidingWindow) sweep(cutoff time.Time) {
	for key, events := range s.events {
		kept := pruneBefore(events, cutoff)
		if len(kept) == 0 {
			delete(s.events, key)
			continue
		}
		s.events[key] = kept
	}
}
