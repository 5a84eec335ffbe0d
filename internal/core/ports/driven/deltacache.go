package driven

import (
	"context"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

// DeltaCache memoises delta detection results. Entries are keyed by the
// organisation plus a digest of the sorted external id set, and must
// tolerate eviction at any time.
type DeltaCache interface {
	// Get returns the cached delta for a key, if present.
	Get(ctx context.Context, key string) (*domain.Delta, bool)

	// Put stores a delta under a key, replacing any existing entry.
	Put(ctx context.Context, key string, delta domain.Delta)
}
