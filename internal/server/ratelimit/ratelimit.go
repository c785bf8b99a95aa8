// Package ratelimit implements the sliding-window attempt limiter applied to
// login requests.
package ratelimit

import (
	"context"
	"time"
)

// Limiter answers whether an event identified by key may proceed. A denied
// caller should retry no sooner than retryAfter, the time until the oldest
// counted event leaves the window. Only allowed events are recorded, so a
// denied caller does not push its own quota further away.
type Limiter interface {
	Allow(ctx context.Context, key string) (ok bool, retryAfter time.Duration, err error)
}
