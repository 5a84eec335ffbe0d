package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
)

// Ensure QueueStore implements the interface.
var _ driven.QueueStore = (*QueueStore)(nil)

// QueueStore is an in-memory implementation of driven.QueueStore.
// Items are kept in enqueue order per (run, system) queue; a requeued item
// moves to the current tail.
type QueueStore struct {
	mu    sync.Mutex
	items map[string]*domain.QueueItem
	// order holds item ids per queue key in processing order.
	order map[string][]string
}

// NewQueueStore creates a new in-memory queue store.
func NewQueueStore() *QueueStore {
	return &QueueStore{
		items: make(map[string]*domain.QueueItem),
		order: make(map[string][]string),
	}
}

func queueKey(syncID, system string) string {
	return syncID + "/" + system
}

// Enqueue appends items in order.
func (s *QueueStore) Enqueue(_ context.Context, items []domain.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range items {
		item := items[i]
		if _, ok := s.items[item.ID]; ok {
			return domain.ErrAlreadyExists
		}
		item.UpdatedAt = time.Now().UTC()
		s.items[item.ID] = &item
		key := queueKey(item.SyncID, item.System)
		s.order[key] = append(s.order[key], item.ID)
	}
	return nil
}

// ClaimBatch atomically claims up to limit pending, unparked items.
func (s *QueueStore) ClaimBatch(_ context.Context, orgID, syncID, system string, limit int, claimedBy string) ([]domain.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []domain.QueueItem
	for _, id := range s.order[queueKey(syncID, system)] {
		if len(claimed) >= limit {
			break
		}
		item := s.items[id]
		if item.OrgID != orgID || item.Status != domain.ItemPending || item.Parked {
			continue
		}
		item.Status = domain.ItemProcessing
		item.ClaimedBy = claimedBy
		item.UpdatedAt = time.Now().UTC()
		claimed = append(claimed, *item)
	}
	return claimed, nil
}

// Complete marks a processing item completed.
func (s *QueueStore) Complete(_ context.Context, id string) error {
	return s.finish(id, domain.ItemCompleted, "")
}

// Skip marks a processing item skipped.
func (s *QueueStore) Skip(_ context.Context, id string) error {
	return s.finish(id, domain.ItemSkipped, "")
}

// Fail marks a processing item failed.
func (s *QueueStore) Fail(_ context.Context, id, lastError string) error {
	return s.finish(id, domain.ItemFailed, lastError)
}

func (s *QueueStore) finish(id string, status domain.ItemStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !item.Status.CanTransitionTo(status) {
		return domain.ErrInvalidInput
	}
	item.Status = status
	item.ClaimedBy = ""
	if lastError != "" {
		item.LastError = lastError
	}
	item.UpdatedAt = time.Now().UTC()
	return nil
}

// Requeue returns a processing item to pending at the tail of its queue.
func (s *QueueStore) Requeue(_ context.Context, id, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if item.Status != domain.ItemProcessing {
		return domain.ErrInvalidInput
	}
	item.Status = domain.ItemPending
	item.ClaimedBy = ""
	item.Attempts++
	item.LastError = lastError
	item.UpdatedAt = time.Now().UTC()
	s.moveToTail(item)
	return nil
}

// Park holds a processing item back for an open conflict.
func (s *QueueStore) Park(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if item.Status != domain.ItemProcessing {
		return domain.ErrInvalidInput
	}
	item.Status = domain.ItemPending
	item.ClaimedBy = ""
	item.Parked = true
	item.UpdatedAt = time.Now().UTC()
	return nil
}

// Unpark releases a parked item for claiming again.
func (s *QueueStore) Unpark(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	item.Parked = false
	item.UpdatedAt = time.Now().UTC()
	return nil
}

// Get retrieves a single item.
func (s *QueueStore) Get(_ context.Context, id string) (*domain.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

// FindParked returns the parked item for a record within a run.
func (s *QueueStore) FindParked(_ context.Context, syncID, entityType, externalID string) (*domain.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.SyncID == syncID && item.EntityType == entityType &&
			item.ExternalID == externalID && item.Parked {
			copied := *item
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Counts returns per-system queue counts for a run.
func (s *QueueStore) Counts(_ context.Context, orgID, syncID string) (map[string]domain.QueueCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]domain.QueueCounts)
	for _, item := range s.items {
		if item.SyncID != syncID || item.OrgID != orgID {
			continue
		}
		c := counts[item.System]
		c.Total++
		switch item.Status {
		case domain.ItemPending, domain.ItemProcessing:
			c.Pending++
		case domain.ItemCompleted:
			c.Processed++
		case domain.ItemFailed:
			c.Failed++
		case domain.ItemSkipped:
			c.Skipped++
		}
		counts[item.System] = c
	}
	return counts, nil
}

// ReleaseClaims returns every processing item claimed by a worker to
// pending without counting an attempt.
func (s *QueueStore) ReleaseClaims(_ context.Context, syncID, claimedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.SyncID == syncID && item.Status == domain.ItemProcessing &&
			(claimedBy == "" || item.ClaimedBy == claimedBy) {
			item.Status = domain.ItemPending
			item.ClaimedBy = ""
			item.UpdatedAt = time.Now().UTC()
			s.moveToTail(item)
		}
	}
	return nil
}

// moveToTail repositions an item at the end of its queue. Callers hold the
// lock.
func (s *QueueStore) moveToTail(item *domain.QueueItem) {
	key := queueKey(item.SyncID, item.System)
	ids := s.order[key]
	for i, id := range ids {
		if id == item.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	s.order[key] = append(ids, item.ID)
}
