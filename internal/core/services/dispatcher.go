package services

import (
	"context"
	"fmt"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driving"
)

// controlCallsPerMin caps how often one org may issue control commands.
const controlCallsPerMin = 10

var _ driving.Dispatcher = (*CommandDispatcher)(nil)

// CommandDispatcher routes typed commands to the orchestrator and
// conflict services. Every command is rate limited per org before it
// reaches a service.
type CommandDispatcher struct {
	orchestrator driving.Orchestrator
	conflicts    driving.ConflictResolver
	control      *OrgRateLimiters
}

// NewCommandDispatcher creates a dispatcher over the given services.
func NewCommandDispatcher(orchestrator driving.Orchestrator, conflicts driving.ConflictResolver) *CommandDispatcher {
	return &CommandDispatcher{
		orchestrator: orchestrator,
		conflicts:    conflicts,
		control:      NewOrgRateLimiters(),
	}
}

// Dispatch executes a command. The command set is closed; an unknown
// command type is a programming error and reported as invalid input.
func (d *CommandDispatcher) Dispatch(ctx context.Context, cmd domain.Command) (*driving.CommandResult, error) {
	orgID := commandOrg(cmd)
	if orgID == "" {
		return nil, fmt.Errorf("%w: org id required", domain.ErrInvalidInput)
	}
	if !d.control.Get(orgID, controlCallsPerMin).Allow() {
		return nil, fmt.Errorf("%w: control call budget exhausted for org %s", domain.ErrRateLimited, orgID)
	}

	switch c := cmd.(type) {
	case domain.StartCommand:
		receipt, err := d.orchestrator.Start(ctx, c.OrgID, c.Systems, c.EntityTypes, c.Config)
		if err != nil {
			return nil, err
		}
		return &driving.CommandResult{Receipt: receipt}, nil

	case domain.StatusCommand:
		snapshot, err := d.orchestrator.Status(ctx, c.OrgID, c.SyncID)
		if err != nil {
			return nil, err
		}
		return &driving.CommandResult{Snapshot: snapshot}, nil

	case domain.PauseCommand:
		if err := d.orchestrator.Pause(ctx, c.OrgID, c.SyncID); err != nil {
			return nil, err
		}
		return &driving.CommandResult{Acknowledged: true}, nil

	case domain.ResumeCommand:
		if err := d.orchestrator.Resume(ctx, c.OrgID, c.SyncID); err != nil {
			return nil, err
		}
		return &driving.CommandResult{Acknowledged: true}, nil

	case domain.CancelCommand:
		if err := d.orchestrator.Cancel(ctx, c.OrgID, c.SyncID); err != nil {
			return nil, err
		}
		return &driving.CommandResult{Acknowledged: true}, nil

	case domain.ConflictsCommand:
		open, err := d.conflicts.Unresolved(ctx, c.OrgID, c.SyncID)
		if err != nil {
			return nil, err
		}
		stats, err := d.conflicts.Stats(ctx, c.OrgID, c.SyncID)
		if err != nil {
			return nil, err
		}
		return &driving.CommandResult{Conflicts: open, ConflictStats: stats}, nil

	case domain.ResolveConflictCommand:
		if err := d.conflicts.ResolveManually(ctx, c.OrgID, c.ConflictID, c.Resolution, c.CustomData, c.ResolvedBy); err != nil {
			return nil, err
		}
		return &driving.CommandResult{Acknowledged: true}, nil

	default:
		return nil, fmt.Errorf("%w: unknown command type %T", domain.ErrInvalidInput, cmd)
	}
}

// commandOrg extracts the issuing org from any command.
func commandOrg(cmd domain.Command) string {
	switch c := cmd.(type) {
	case domain.StartCommand:
		return c.OrgID
	case domain.StatusCommand:
		return c.OrgID
	case domain.PauseCommand:
		return c.OrgID
	case domain.ResumeCommand:
		return c.OrgID
	case domain.CancelCommand:
		return c.OrgID
	case domain.ConflictsCommand:
		return c.OrgID
	case domain.ResolveConflictCommand:
		return c.OrgID
	default:
		return ""
	}
}
