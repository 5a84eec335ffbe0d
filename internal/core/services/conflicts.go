package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driving"
	"github.com/nxtleveltech/mantis-sync/internal/logger"
)

// Ensure ConflictService implements the interface.
var _ driving.ConflictResolver = (*ConflictService)(nil)

// ConflictService tracks and settles cross-system disagreements. The
// orchestrator opens conflicts through it; callers query and resolve them.
type ConflictService struct {
	conflicts driven.ConflictStore
	records   driven.RecordStore
	queue     driven.QueueStore
	registry  driven.ConnectorRegistry
}

// NewConflictService creates a conflict service.
func NewConflictService(
	conflicts driven.ConflictStore,
	records driven.RecordStore,
	queue driven.QueueStore,
	registry driven.ConnectorRegistry,
) *ConflictService {
	return &ConflictService{
		conflicts: conflicts,
		records:   records,
		queue:     queue,
		registry:  registry,
	}
}

// Unresolved returns the open conflicts for a run.
func (s *ConflictService) Unresolved(ctx context.Context, orgID, syncID string) ([]domain.Conflict, error) {
	return s.conflicts.Unresolved(ctx, orgID, syncID)
}

// Stats returns conflict counts for a run.
func (s *ConflictService) Stats(ctx context.Context, orgID, syncID string) (*domain.ConflictStats, error) {
	return s.conflicts.Stats(ctx, orgID, syncID)
}

// ResolveManually settles a conflict. Re-invoking on an already-resolved
// conflict is a no-op, not an error.
func (s *ConflictService) ResolveManually(ctx context.Context, orgID, conflictID string, action domain.ResolutionAction, customData map[string]string, resolvedBy string) error {
	conflict, err := s.conflicts.Get(ctx, orgID, conflictID)
	if err != nil {
		return fmt.Errorf("get conflict: %w", err)
	}
	if conflict.Resolved {
		return nil
	}
	if !action.Valid() {
		return fmt.Errorf("%w: unsupported resolution %q", domain.ErrInvalidInput, action)
	}

	switch action {
	case domain.ResolutionAccept:
		if err := s.commit(ctx, conflict, incomingValues(conflict)); err != nil {
			return err
		}
	case domain.ResolutionReject:
		// Keep the internal value; nothing to write.
	case domain.ResolutionCustom:
		if err := conflict.ValidateCustomData(customData); err != nil {
			return err
		}
		if err := s.commit(ctx, conflict, customData); err != nil {
			return err
		}
	}

	err = s.conflicts.Resolve(ctx, conflictID, action, resolvedBy, time.Now().UTC())
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil // Lost a resolution race; outcome already settled.
	}
	if err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}

	if action != domain.ResolutionAccept {
		// The source system's incoming value lost; write the settled
		// record back so both sides converge.
		s.pushBack(ctx, conflict)
	}

	s.unparkItem(ctx, conflict)
	logger.Info("conflict %s resolved (%s) by %s", conflictID, action, resolvedBy)
	return nil
}

// pushBack writes the settled record to the conflict's source system.
// Best effort: the local resolution stands even if the external write
// fails.
func (s *ConflictService) pushBack(ctx context.Context, conflict *domain.Conflict) {
	if s.registry == nil {
		return
	}
	connector, err := s.registry.Get(conflict.SourceSystem)
	if err != nil {
		return
	}
	current, err := s.records.Get(ctx, conflict.OrgID, conflict.EntityType, conflict.ExternalID)
	if err != nil {
		return
	}
	if err := connector.Push(ctx, conflict.OrgID, conflict.EntityType, conflict.ExternalID, current); err != nil {
		logger.Warn("push-back to %s for %s/%s failed: %v",
			conflict.SourceSystem, conflict.EntityType, conflict.ExternalID, err)
	}
}

// Open records a detected divergence, deduplicating against an existing
// open conflict for the same record. Returns the conflict on file.
func (s *ConflictService) Open(ctx context.Context, conflict *domain.Conflict) (*domain.Conflict, error) {
	existing, err := s.conflicts.FindOpen(ctx, conflict.SyncID, conflict.EntityType, conflict.ExternalID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find open conflict: %w", err)
	}

	if conflict.ID == "" {
		conflict.ID = uuid.New().String()
	}
	if conflict.DetectedAt.IsZero() {
		conflict.DetectedAt = time.Now().UTC()
	}
	if err := s.conflicts.Create(ctx, conflict); err != nil {
		return nil, fmt.Errorf("create conflict: %w", err)
	}
	logger.Info("conflict opened for %s/%s in run %s", conflict.EntityType, conflict.ExternalID, conflict.SyncID)
	return conflict, nil
}

// commit overlays the chosen values onto the current internal record and
// writes it back.
func (s *ConflictService) commit(ctx context.Context, conflict *domain.Conflict, values map[string]string) error {
	current, err := s.records.Get(ctx, conflict.OrgID, conflict.EntityType, conflict.ExternalID)
	if errors.Is(err, domain.ErrNotFound) {
		current = domain.Record{}
	} else if err != nil {
		return fmt.Errorf("read record: %w", err)
	}

	merged := make(domain.Record, len(current)+len(values))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}

	if err := s.records.Apply(ctx, conflict.OrgID, conflict.EntityType, conflict.ExternalID, merged, conflict.SourceSystem, conflict.SyncID); err != nil {
		return fmt.Errorf("apply resolution: %w", err)
	}
	return nil
}

// unparkItem releases the queue item held for this conflict, if any.
func (s *ConflictService) unparkItem(ctx context.Context, conflict *domain.Conflict) {
	if s.queue == nil {
		return
	}
	item, err := s.queue.FindParked(ctx, conflict.SyncID, conflict.EntityType, conflict.ExternalID)
	if err != nil {
		return // No parked item is fine; the run may have moved on.
	}
	if err := s.queue.Unpark(ctx, item.ID); err != nil {
		logger.Warn("failed to unpark item %s: %v", item.ID, err)
	}
}

// incomingValues extracts the New side of every change.
func incomingValues(conflict *domain.Conflict) map[string]string {
	values := make(map[string]string, len(conflict.Changes))
	for field, change := range conflict.Changes {
		values[field] = change.New
	}
	return values
}
