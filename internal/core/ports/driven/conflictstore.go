package driven

import (
	"context"
	"time"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

// ConflictStore persists conflict records.
type ConflictStore interface {
	// Create persists a new conflict.
	Create(ctx context.Context, conflict *domain.Conflict) error

	// Get retrieves a conflict scoped to an organisation.
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, orgID, conflictID string) (*domain.Conflict, error)

	// Unresolved returns the open conflicts for a run, oldest first.
	Unresolved(ctx context.Context, orgID, syncID string) ([]domain.Conflict, error)

	// FindOpen returns the open conflict for a record within a run, or
	// domain.ErrNotFound. Prevents duplicate conflicts for one record.
	FindOpen(ctx context.Context, syncID, entityType, externalID string) (*domain.Conflict, error)

	// Resolve marks a conflict resolved. The update is guarded so the
	// false to true transition happens exactly once; resolving an
	// already-resolved conflict reports domain.ErrAlreadyExists.
	Resolve(ctx context.Context, conflictID string, action domain.ResolutionAction, resolvedBy string, resolvedAt time.Time) error

	// Stats returns conflict counts for a run.
	Stats(ctx context.Context, orgID, syncID string) (*domain.ConflictStats, error)
}
