package driving

import (
	"context"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

// ConflictResolver tracks and settles cross-system disagreements.
type ConflictResolver interface {
	// Unresolved returns the open conflicts for a run.
	Unresolved(ctx context.Context, orgID, syncID string) ([]domain.Conflict, error)

	// Stats returns conflict counts for a run.
	Stats(ctx context.Context, orgID, syncID string) (*domain.ConflictStats, error)

	// ResolveManually settles a conflict. Accept commits the incoming
	// external value, reject keeps the internal value, custom commits
	// the supplied data after validating it against the conflict's
	// fields. Resolving an already-resolved conflict is a no-op.
	ResolveManually(ctx context.Context, orgID, conflictID string, action domain.ResolutionAction, customData map[string]string, resolvedBy string) error
}
