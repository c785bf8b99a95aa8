// Package cache provides the narrow TTL key-value store shared by the
// permission cache and the revocation set. Backends are interchangeable:
// an in-process map for single-node deployments and tests, Redis when the
// issuer runs with shared state.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key-value store. Keys are independent: implementations must
// provide per-key atomicity for writes and allow concurrent reads without a
// global lock.
type Store interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent or its TTL has elapsed.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key for ttl. A non-positive ttl is a no-op:
	// the entry would already be expired.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
