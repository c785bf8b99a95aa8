// Package permissions resolves a user's effective permission set from role
// memberships, cache-aside with explicit invalidation.
package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nexuskit/authkeeper/internal/logging"
	"github.com/nexuskit/authkeeper/internal/server/cache"
	"github.com/nexuskit/authkeeper/internal/server/metrics"
	"github.com/nexuskit/authkeeper/internal/server/models"
)

// cacheKeyPrefix namespaces permission entries in the shared cache.
const cacheKeyPrefix = "user_permissions:"

// DefaultTTL bounds staleness when no explicit invalidation arrives.
const DefaultTTL = time.Hour

// Source supplies the data permission sets are computed from.
type Source interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	// PermissionsOf returns the union of permission codenames across all of
	// the user's roles.
	PermissionsOf(ctx context.Context, userID string) ([]string, error)
	// AllPermissions returns the full permission catalog.
	AllPermissions(ctx context.Context) ([]string, error)
}

// Resolver computes effective permission sets. Reads far outnumber role
// mutations, so computed sets are cached with a TTL; role mutations must call
// InvalidateUser synchronously before answering their caller.
type Resolver struct {
	source Source
	cache  cache.Store
	ttl    time.Duration
	log    logging.Logger

	// group collapses concurrent cache misses for one user into a single
	// computation. The key includes the user's generation so callers that
	// arrive after an invalidation never join a stale flight.
	group singleflight.Group
	gens  sync.Map
}

func NewResolver(source Source, store cache.Store, ttl time.Duration, log logging.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{source: source, cache: store, ttl: ttl, log: log}
}

func (r *Resolver) generation(userID string) *atomic.Uint64 {
	v, _ := r.gens.LoadOrStore(userID, &atomic.Uint64{})
	return v.(*atomic.Uint64)
}

// GetEffectivePermissions returns the user's permission set, served from
// cache when fresh and computed otherwise. A superuser short-circuits to the
// full catalog without touching role data.
func (r *Resolver) GetEffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	key := cacheKeyPrefix + userID

	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		// A broken cache degrades to recomputation, not failure.
		r.log.Warn(ctx, "permission cache read failed", "user_id", userID, "error", err)
	} else if ok {
		var perms []string
		if err := json.Unmarshal(raw, &perms); err == nil {
			metrics.PermissionCache.WithLabelValues("hit").Inc()
			return perms, nil
		}
		_ = r.cache.Delete(ctx, key)
	}
	metrics.PermissionCache.WithLabelValues("miss").Inc()

	gen := r.generation(userID).Load()
	v, err, _ := r.group.Do(fmt.Sprintf("%s#%d", userID, gen), func() (any, error) {
		perms, err := r.compute(ctx, userID)
		if err != nil {
			return nil, err
		}
		r.store(ctx, userID, key, gen, perms)
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// store caches perms unless an invalidation raced the computation. The
// second generation check removes an entry written just before a concurrent
// InvalidateUser bumped the generation.
func (r *Resolver) store(ctx context.Context, userID, key string, gen uint64, perms []string) {
	if r.generation(userID).Load() != gen {
		return
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
		r.log.Warn(ctx, "permission cache write failed", "user_id", userID, "error", err)
		return
	}
	if r.generation(userID).Load() != gen {
		_ = r.cache.Delete(ctx, key)
	}
}

func (r *Resolver) compute(ctx context.Context, userID string) ([]string, error) {
	user, err := r.source.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", userID, err)
	}

	var perms []string
	if user.IsSuperuser {
		perms, err = r.source.AllPermissions(ctx)
	} else {
		perms, err = r.source.PermissionsOf(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("computing permissions for %s: %w", userID, err)
	}

	if perms == nil {
		perms = []string{}
	}
	sort.Strings(perms)
	return perms, nil
}

// InvalidateUser drops the user's cache entry. Must run synchronously inside
// any operation that mutates the user's role memberships, before that
// operation returns.
func (r *Resolver) InvalidateUser(ctx context.Context, userID string) error {
	r.generation(userID).Add(1)
	if err := r.cache.Delete(ctx, cacheKeyPrefix+userID); err != nil {
		return fmt.Errorf("invalidating permissions for %s: %w", userID, err)
	}
	return nil
}
