package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
)

// conflictStore implements driven.ConflictStore.
type conflictStore struct {
	store *Store
}

var _ driven.ConflictStore = (*conflictStore)(nil)

// Create persists a new conflict.
func (s *conflictStore) Create(ctx context.Context, conflict *domain.Conflict) error {
	changedFieldsJSON, err := json.Marshal(conflict.ChangedFields)
	if err != nil {
		return fmt.Errorf("marshalling changed fields: %w", err)
	}
	changesJSON, err := json.Marshal(conflict.Changes)
	if err != nil {
		return fmt.Errorf("marshalling changes: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO conflicts (id, sync_id, org_id, entity_type, external_id, internal_id,
			source_system, changed_fields, changes, resolved, resolution_action,
			resolved_by, resolved_at, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, conflict.ID, conflict.SyncID, conflict.OrgID, conflict.EntityType, conflict.ExternalID,
		nullString(conflict.InternalID), conflict.SourceSystem, string(changedFieldsJSON),
		string(changesJSON), boolToInt(conflict.Resolved), nullString(string(conflict.ResolutionAction)),
		nullString(conflict.ResolvedBy), formatNullableTime(conflict.ResolvedAt),
		conflict.DetectedAt.Format(time.RFC3339Nano))
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("saving conflict: %w", err)
	}
	return nil
}

// Get retrieves a conflict scoped to an organisation.
func (s *conflictStore) Get(ctx context.Context, orgID, conflictID string) (*domain.Conflict, error) {
	row := s.store.db.QueryRowContext(ctx, selectConflict+" WHERE id = ? AND org_id = ?", conflictID, orgID)
	return scanConflict(row)
}

// Unresolved returns the open conflicts for a run, oldest first.
func (s *conflictStore) Unresolved(ctx context.Context, orgID, syncID string) ([]domain.Conflict, error) {
	rows, err := s.store.db.QueryContext(ctx,
		selectConflict+" WHERE org_id = ? AND sync_id = ? AND resolved = 0 ORDER BY detected_at",
		orgID, syncID)
	if err != nil {
		return nil, fmt.Errorf("listing conflicts: %w", err)
	}
	defer rows.Close()

	var open []domain.Conflict
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		open = append(open, *conflict)
	}
	return open, rows.Err()
}

// FindOpen returns the open conflict for a record within a run.
func (s *conflictStore) FindOpen(ctx context.Context, syncID, entityType, externalID string) (*domain.Conflict, error) {
	row := s.store.db.QueryRowContext(ctx,
		selectConflict+" WHERE sync_id = ? AND entity_type = ? AND external_id = ? AND resolved = 0 LIMIT 1",
		syncID, entityType, externalID)
	return scanConflict(row)
}

// Resolve marks a conflict resolved exactly once.
func (s *conflictStore) Resolve(ctx context.Context, conflictID string, action domain.ResolutionAction, resolvedBy string, resolvedAt time.Time) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE conflicts
		SET resolved = 1, resolution_action = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND resolved = 0
	`, string(action), resolvedBy, resolvedAt.Format(time.RFC3339Nano), conflictID)
	if err != nil {
		return fmt.Errorf("resolving conflict: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking resolution: %w", err)
	}
	if affected == 0 {
		var exists int
		row := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conflicts WHERE id = ?", conflictID)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("checking conflict existence: %w", err)
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrAlreadyExists
	}
	return nil
}

// Stats returns conflict counts for a run.
func (s *conflictStore) Stats(ctx context.Context, orgID, syncID string) (*domain.ConflictStats, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT changed_fields, resolved, resolution_action
		FROM conflicts WHERE org_id = ? AND sync_id = ?
	`, orgID, syncID)
	if err != nil {
		return nil, fmt.Errorf("reading conflict stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.ConflictStats{
		ByField:  make(map[string]int),
		ByAction: make(map[domain.ResolutionAction]int),
	}
	for rows.Next() {
		var changedFieldsJSON string
		var resolved int
		var action sql.NullString
		if err := rows.Scan(&changedFieldsJSON, &resolved, &action); err != nil {
			return nil, fmt.Errorf("scanning conflict stats: %w", err)
		}
		stats.Total++
		if resolved == 1 {
			stats.Resolved++
			stats.ByAction[domain.ResolutionAction(action.String)]++
			continue
		}
		stats.Unresolved++
		var fields []string
		if err := json.Unmarshal([]byte(changedFieldsJSON), &fields); err != nil {
			return nil, fmt.Errorf("unmarshaling changed fields: %w", err)
		}
		for _, field := range fields {
			stats.ByField[field]++
		}
	}
	return stats, rows.Err()
}

const selectConflict = `
	SELECT id, sync_id, org_id, entity_type, external_id, internal_id, source_system,
		changed_fields, changes, resolved, resolution_action, resolved_by, resolved_at, detected_at
	FROM conflicts`

func scanConflict(row rowScanner) (*domain.Conflict, error) {
	var c domain.Conflict
	var internalID, action, resolvedBy, resolvedAt sql.NullString
	var changedFieldsJSON, changesJSON, detectedAt string
	var resolved int
	if err := row.Scan(&c.ID, &c.SyncID, &c.OrgID, &c.EntityType, &c.ExternalID,
		&internalID, &c.SourceSystem, &changedFieldsJSON, &changesJSON,
		&resolved, &action, &resolvedBy, &resolvedAt, &detectedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning conflict: %w", err)
	}

	if err := json.Unmarshal([]byte(changedFieldsJSON), &c.ChangedFields); err != nil {
		return nil, fmt.Errorf("unmarshaling changed fields: %w", err)
	}
	if err := json.Unmarshal([]byte(changesJSON), &c.Changes); err != nil {
		return nil, fmt.Errorf("unmarshaling changes: %w", err)
	}

	c.InternalID = internalID.String
	c.Resolved = resolved == 1
	c.ResolutionAction = domain.ResolutionAction(action.String)
	c.ResolvedBy = resolvedBy.String
	c.ResolvedAt = parseNullableTime(resolvedAt)

	t, err := time.Parse(time.RFC3339Nano, detectedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing detected_at: %w", err)
	}
	c.DetectedAt = t
	return &c, nil
}
