package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
)

// Ensure ConflictStore implements the interface.
var _ driven.ConflictStore = (*ConflictStore)(nil)

// ConflictStore is an in-memory implementation of driven.ConflictStore.
type ConflictStore struct {
	mu        sync.RWMutex
	conflicts map[string]domain.Conflict
}

// NewConflictStore creates a new in-memory conflict store.
func NewConflictStore() *ConflictStore {
	return &ConflictStore{
		conflicts: make(map[string]domain.Conflict),
	}
}

// Create persists a new conflict.
func (s *ConflictStore) Create(_ context.Context, conflict *domain.Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conflicts[conflict.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.conflicts[conflict.ID] = cloneConflict(*conflict)
	return nil
}

// Get retrieves a conflict scoped to an organisation.
func (s *ConflictStore) Get(_ context.Context, orgID, conflictID string) (*domain.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conflicts[conflictID]
	if !ok || c.OrgID != orgID {
		return nil, domain.ErrNotFound
	}
	copied := cloneConflict(c)
	return &copied, nil
}

// Unresolved returns the open conflicts for a run, oldest first.
func (s *ConflictStore) Unresolved(_ context.Context, orgID, syncID string) ([]domain.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var open []domain.Conflict
	for _, c := range s.conflicts {
		if c.OrgID == orgID && c.SyncID == syncID && !c.Resolved {
			open = append(open, cloneConflict(c))
		}
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].DetectedAt.Before(open[j].DetectedAt)
	})
	return open, nil
}

// FindOpen returns the open conflict for a record within a run.
func (s *ConflictStore) FindOpen(_ context.Context, syncID, entityType, externalID string) (*domain.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conflicts {
		if c.SyncID == syncID && c.EntityType == entityType &&
			c.ExternalID == externalID && !c.Resolved {
			copied := cloneConflict(c)
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Resolve marks a conflict resolved exactly once.
func (s *ConflictStore) Resolve(_ context.Context, conflictID string, action domain.ResolutionAction, resolvedBy string, resolvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conflicts[conflictID]
	if !ok {
		return domain.ErrNotFound
	}
	if c.Resolved {
		return domain.ErrAlreadyExists
	}
	c.Resolved = true
	c.ResolutionAction = action
	c.ResolvedBy = resolvedBy
	c.ResolvedAt = resolvedAt
	s.conflicts[conflictID] = c
	return nil
}

// Stats returns conflict counts for a run.
func (s *ConflictStore) Stats(_ context.Context, orgID, syncID string) (*domain.ConflictStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &domain.ConflictStats{
		ByField:  make(map[string]int),
		ByAction: make(map[domain.ResolutionAction]int),
	}
	for _, c := range s.conflicts {
		if c.OrgID != orgID || c.SyncID != syncID {
			continue
		}
		stats.Total++
		if c.Resolved {
			stats.Resolved++
			stats.ByAction[c.ResolutionAction]++
			continue
		}
		stats.Unresolved++
		for _, field := range c.ChangedFields {
			stats.ByField[field]++
		}
	}
	return stats, nil
}

// cloneConflict deep-copies a conflict so callers cannot mutate stored
// state.
func cloneConflict(c domain.Conflict) domain.Conflict {
	c.ChangedFields = append([]string(nil), c.ChangedFields...)
	changes := make(map[string]domain.FieldChange, len(c.Changes))
	for k, v := range c.Changes {
		changes[k] = v
	}
	c.Changes = changes
	return c
}
