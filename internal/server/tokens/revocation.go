package tokens

import (
	"context"
	"time"

	"github.com/nexuskit/authkeeper/internal/server/cache"
)

// revocationKeyPrefix namespaces revocation entries in the shared cache.
const revocationKeyPrefix = "revoked_refresh:"

// RevocationSet records refresh-token identifiers that must no longer be
// honored. Entries carry the revocation timestamp and live exactly as long
// as the underlying token would have, so the set never outgrows the set of
// live tokens.
type RevocationSet struct {
	store cache.Store

	// now is a test seam for the recorded timestamp.
	now func() time.Time
}

func NewRevocationSet(store cache.Store) *RevocationSet {
	return &RevocationSet{store: store, now: time.Now}
}

// Revoke marks jti revoked for ttl. Re-revoking an identifier overwrites the
// entry and is not an error.
func (s *RevocationSet) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	stamp := s.now().UTC().Format(time.RFC3339Nano)
	return s.store.Set(ctx, revocationKeyPrefix+jti, []byte(stamp), ttl)
}

// IsRevoked reports revocation-set membership for jti.
func (s *RevocationSet) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, ok, err := s.store.Get(ctx, revocationKeyPrefix+jti)
	return ok, err
}
