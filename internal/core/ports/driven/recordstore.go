package driven

import (
	"context"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

// RecordStore reads and writes local business records. Delta detection
// reads refs from it; the orchestrator and conflict resolver write
// reconciled values back through it.
type RecordStore interface {
	// Refs returns local bookkeeping for every record of an entity type,
	// keyed by external id.
	Refs(ctx context.Context, orgID, entityType string) (map[string]domain.RecordRef, error)

	// Get returns the current internal values for a record.
	// Returns domain.ErrNotFound if the record does not exist locally.
	Get(ctx context.Context, orgID, entityType, externalID string) (domain.Record, error)

	// Apply writes reconciled values for a record and records which
	// system supplied them within which run. Apply is idempotent: a
	// repeated write of the same values is harmless.
	Apply(ctx context.Context, orgID, entityType, externalID string, rec domain.Record, system, syncID string) error

	// LastApplied returns the values most recently applied for a record
	// within a run and the system that supplied them. Returns
	// domain.ErrNotFound when nothing was applied in this run yet.
	LastApplied(ctx context.Context, syncID, entityType, externalID string) (string, domain.Record, error)
}
