package driving

import (
	"context"
	"time"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

// Orchestrator coordinates multi-system, multi-entity synchronisation runs.
type Orchestrator interface {
	// Start validates and admits a new run, persists it and returns
	// immediately; processing happens in a background task. Returns
	// domain.ErrInvalidInput for bad requests and
	// domain.ErrAdmissionLimit when the organisation is at its
	// concurrent-run limit.
	Start(ctx context.Context, orgID string, systems, entityTypes []string, cfg domain.BatchConfig) (*StartReceipt, error)

	// Status returns a full snapshot, computed purely from the durable
	// store. Returns domain.ErrNotFound for an unknown run.
	Status(ctx context.Context, orgID, syncID string) (*StatusSnapshot, error)

	// Pause requests a pause at the next batch boundary.
	Pause(ctx context.Context, orgID, syncID string) error

	// Resume continues a paused run.
	Resume(ctx context.Context, orgID, syncID string) error

	// Cancel cooperatively stops a run. Already-applied writes are kept.
	Cancel(ctx context.Context, orgID, syncID string) error
}

// StartReceipt acknowledges an admitted run.
type StartReceipt struct {
	// SyncID is the new run's identifier.
	SyncID string

	// Status is always domain.RunQueued at admission time.
	Status domain.RunStatus
}

// StatusSnapshot is a point-in-time view of one run.
type StatusSnapshot struct {
	SyncID string
	OrgID  string
	Status domain.RunStatus

	// Queues holds per-system queue counts.
	Queues map[string]domain.QueueCounts

	// Conflicts summarises the run's conflicts.
	Conflicts domain.ConflictStats

	StartedAt   time.Time
	CompletedAt time.Time
}

// Totals sums the per-system queue counts.
func (s *StatusSnapshot) Totals() domain.QueueCounts {
	var total domain.QueueCounts
	for _, c := range s.Queues {
		total.Total += c.Total
		total.Pending += c.Pending
		total.Processed += c.Processed
		total.Failed += c.Failed
		total.Skipped += c.Skipped
	}
	return total
}
