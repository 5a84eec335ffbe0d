package driven

import (
	"context"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

// QueueStore persists per-system work queues. All state transitions are
// written through the store so a restarted process can reconstruct a run.
type QueueStore interface {
	// Enqueue appends items in order. Enqueue order is processing order.
	Enqueue(ctx context.Context, items []domain.QueueItem) error

	// ClaimBatch atomically transitions up to limit pending, unparked
	// items for one system's queue from pending to processing, tagging
	// them with the claiming worker. Two workers can never claim the
	// same item. Returns the claimed items in queue order; an empty
	// slice means the queue is drained.
	ClaimBatch(ctx context.Context, orgID, syncID, system string, limit int, claimedBy string) ([]domain.QueueItem, error)

	// Complete marks a processing item completed.
	Complete(ctx context.Context, id string) error

	// Skip marks a processing item skipped.
	Skip(ctx context.Context, id string) error

	// Fail marks a processing item failed with its last error.
	Fail(ctx context.Context, id, lastError string) error

	// Requeue returns a processing item to pending at the current tail
	// of its queue, recording the attempt and error. Used for retries.
	Requeue(ctx context.Context, id, lastError string) error

	// Park returns a processing item to pending and marks it parked so
	// it is held back from claiming while its conflict is open.
	Park(ctx context.Context, id string) error

	// Unpark releases a parked item for claiming again.
	Unpark(ctx context.Context, id string) error

	// Get retrieves a single item. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.QueueItem, error)

	// FindParked returns the parked item for a record within a run, or
	// domain.ErrNotFound.
	FindParked(ctx context.Context, syncID, entityType, externalID string) (*domain.QueueItem, error)

	// Counts returns per-system queue counts for a run.
	Counts(ctx context.Context, orgID, syncID string) (map[string]domain.QueueCounts, error)

	// ReleaseClaims returns every processing item claimed by a worker to
	// pending without counting an attempt. An empty claimedBy releases
	// every claim for the run, regardless of worker; used on crash
	// recovery so no item is left processing.
	ReleaseClaims(ctx context.Context, syncID, claimedBy string) error
}
