package driving

import (
	"context"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

// Dispatcher is the single control endpoint. Every control action is a
// typed domain.Command; dispatch is an exhaustive type switch, and control
// calls are rate-limited per organisation independently of any run's
// internal item rate limit.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd domain.Command) (*CommandResult, error)
}

// CommandResult carries the outcome of a dispatched command. Exactly one
// of the payload fields is set, matching the command type.
type CommandResult struct {
	// Receipt is set for start commands.
	Receipt *StartReceipt

	// Snapshot is set for status commands.
	Snapshot *StatusSnapshot

	// Conflicts and ConflictStats are set for conflicts commands.
	Conflicts     []domain.Conflict
	ConflictStats *domain.ConflictStats

	// Acknowledged is set for pause/resume/cancel/resolve commands.
	Acknowledged bool
}
