package driven

import (
	"context"
	"time"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

// RunStore persists sync runs.
type RunStore interface {
	// Create persists a new run. Returns domain.ErrAlreadyExists if the
	// id is taken.
	Create(ctx context.Context, run *domain.SyncRun) error

	// Get retrieves a run scoped to an organisation.
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, orgID, syncID string) (*domain.SyncRun, error)

	// Transition atomically moves a run from one status to another.
	// The update is guarded: it only applies while the run is still in
	// the expected status, so concurrent orchestrator instances cannot
	// race each other. Returns domain.ErrNotFound when the run does not
	// exist and domain.ErrRunNotActive when the guard fails.
	Transition(ctx context.Context, orgID, syncID string, from, to domain.RunStatus, completedAt time.Time) error

	// CountActive returns the number of non-terminal runs for an
	// organisation. Used for admission control.
	CountActive(ctx context.Context, orgID string) (int, error)

	// List returns all runs for an organisation, newest first.
	List(ctx context.Context, orgID string) ([]domain.SyncRun, error)
}
