package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]domain.SyncRun
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]domain.SyncRun),
	}
}

// Create persists a new run.
func (s *RunStore) Create(_ context.Context, run *domain.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.runs[run.ID] = cloneRun(*run)
	return nil
}

// Get retrieves a run scoped to an organisation.
func (s *RunStore) Get(_ context.Context, orgID, syncID string) (*domain.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[syncID]
	if !ok || run.OrgID != orgID {
		return nil, domain.ErrNotFound
	}
	copied := cloneRun(run)
	return &copied, nil
}

// Transition atomically moves a run between statuses with a guard on the
// expected current status.
func (s *RunStore) Transition(_ context.Context, orgID, syncID string, from, to domain.RunStatus, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[syncID]
	if !ok || run.OrgID != orgID {
		return domain.ErrNotFound
	}
	if run.Status != from {
		return domain.ErrRunNotActive
	}
	run.Status = to
	if to.Terminal() {
		run.CompletedAt = completedAt
	}
	s.runs[syncID] = run
	return nil
}

// CountActive returns the number of non-terminal runs for an organisation.
func (s *RunStore) CountActive(_ context.Context, orgID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, run := range s.runs {
		if run.OrgID == orgID && !run.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

// List returns all runs for an organisation, newest first.
func (s *RunStore) List(_ context.Context, orgID string) ([]domain.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var runs []domain.SyncRun
	for _, run := range s.runs {
		if run.OrgID == orgID {
			runs = append(runs, cloneRun(run))
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// cloneRun deep-copies a run so callers cannot mutate stored state.
func cloneRun(run domain.SyncRun) domain.SyncRun {
	run.Systems = append([]string(nil), run.Systems...)
	run.EntityTypes = append([]string(nil), run.EntityTypes...)
	return run
}
