package services

import (
	"sync"
	"time"
)

// timerCtl owns one restartable deadline timer. Start arms it from scratch,
// replacing any previous deadline; Stop disarms it. A callback already in
// flight when Stop runs may still fire, so callbacks validate coordinator
// state on entry instead of assuming perfect cancellation.
type timerCtl struct {
	d  time.Duration
	fn func()

	mu sync.Mutex
	t  *time.Timer
}

func newTimerCtl(d time.Duration, fn func()) *timerCtl {
	return &timerCtl{d: d, fn: fn}
}

// Start arms the timer, replacing any previous deadline.
func (tc *timerCtl) Start() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.t != nil {
		tc.t.Stop()
	}
	tc.t = time.AfterFunc(tc.d, tc.fn)
}

// Stop disarms the timer if armed.
func (tc *timerCtl) Stop() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.t != nil {
		tc.t.Stop()
		tc.t = nil
	}
}
