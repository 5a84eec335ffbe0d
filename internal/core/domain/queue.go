package domain

import "time"

// ItemStatus is the lifecycle state of a queue item. Transitions are
// monotonic: pending → processing → {completed|failed|skipped}, with
// processing → pending allowed only for a retry requeue.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
	ItemSkipped    ItemStatus = "skipped"
)

// Terminal reports whether the status is an end state.
func (s ItemStatus) Terminal() bool {
	switch s {
	case ItemCompleted, ItemFailed, ItemSkipped:
		return true
	}
	return false
}

// CanTransitionTo reports whether a transition from s to next is legal.
// Terminal states never transition. A pending item must be claimed
// (processing) before it can complete.
func (s ItemStatus) CanTransitionTo(next ItemStatus) bool {
	switch s {
	case ItemPending:
		return next == ItemProcessing
	case ItemProcessing:
		return next == ItemPending || next.Terminal()
	}
	return false
}

// QueueItem is one unit of work: one external record for one system and
// entity type within a run.
type QueueItem struct {
	// ID is the unique identifier for the item.
	ID string

	// OrgID is the owning organisation.
	OrgID string

	// SyncID links to the owning run.
	SyncID string

	// System is the external system the record belongs to.
	System string

	// EntityType is the record's entity type.
	EntityType string

	// ExternalID identifies the record in the external system.
	ExternalID string

	// InternalID identifies the matching local record, if one exists.
	InternalID string

	// Status is the current lifecycle state.
	Status ItemStatus

	// Attempts counts how many times processing has been attempted.
	Attempts int

	// LastError holds the most recent failure message, if any.
	LastError string

	// ClaimedBy tags the worker instance holding the processing lease.
	// Empty when the item is not claimed.
	ClaimedBy string

	// Parked marks a pending item held back for an open conflict.
	// Parked items are never claimed; they stay pending until the
	// conflict is resolved.
	Parked bool

	// UpdatedAt is when the item last changed state.
	UpdatedAt time.Time
}

// QueueCounts summarises a run's queue for one system.
type QueueCounts struct {
	Total     int
	Pending   int
	Processed int
	Failed    int
	Skipped   int
}

// Done reports whether every item has reached a terminal state.
func (c QueueCounts) Done() bool {
	return c.Pending == 0 && c.Processed+c.Failed+c.Skipped == c.Total
}
