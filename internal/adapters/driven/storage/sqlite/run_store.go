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

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// Create persists a new run.
func (s *runStore) Create(ctx context.Context, run *domain.SyncRun) error {
	systemsJSON, err := json.Marshal(run.Systems)
	if err != nil {
		return fmt.Errorf("marshalling systems: %w", err)
	}
	entityTypesJSON, err := json.Marshal(run.EntityTypes)
	if err != nil {
		return fmt.Errorf("marshalling entity types: %w", err)
	}
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, org_id, systems, entity_types, config, status, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.OrgID, string(systemsJSON), string(entityTypesJSON), string(configJSON),
		string(run.Status), run.StartedAt.Format(time.RFC3339Nano), formatNullableTime(run.CompletedAt))
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// Get retrieves a run scoped to an organisation.
func (s *runStore) Get(ctx context.Context, orgID, syncID string) (*domain.SyncRun, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, org_id, systems, entity_types, config, status, started_at, completed_at
		FROM sync_runs WHERE id = ? AND org_id = ?
	`, syncID, orgID)
	return scanRun(row)
}

// Transition atomically moves a run between statuses with a guard on the
// expected current status.
func (s *runStore) Transition(ctx context.Context, orgID, syncID string, from, to domain.RunStatus, completedAt time.Time) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE sync_runs SET status = ?, completed_at = ?
		WHERE id = ? AND org_id = ? AND status = ?
	`, string(to), formatNullableTime(completedAt), syncID, orgID, string(from))
	if err != nil {
		return fmt.Errorf("transitioning run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking transition: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing run from a lost guard.
		var exists int
		row := s.store.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sync_runs WHERE id = ? AND org_id = ?", syncID, orgID)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("checking run existence: %w", err)
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrRunNotActive
	}
	return nil
}

// CountActive returns the number of non-terminal runs for an organisation.
func (s *runStore) CountActive(ctx context.Context, orgID string) (int, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sync_runs
		WHERE org_id = ? AND status IN (?, ?, ?)
	`, orgID, string(domain.RunQueued), string(domain.RunProcessing), string(domain.RunPaused))
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting active runs: %w", err)
	}
	return count, nil
}

// List returns all runs for an organisation, newest first.
func (s *runStore) List(ctx context.Context, orgID string) ([]domain.SyncRun, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, org_id, systems, entity_types, config, status, started_at, completed_at
		FROM sync_runs WHERE org_id = ? ORDER BY started_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// rowScanner lets one scan helper serve QueryRow and Query results.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*domain.SyncRun, error) {
	var run domain.SyncRun
	var systemsJSON, entityTypesJSON, configJSON, status, startedAt string
	var completedAt sql.NullString
	if err := row.Scan(&run.ID, &run.OrgID, &systemsJSON, &entityTypesJSON, &configJSON,
		&status, &startedAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	if err := json.Unmarshal([]byte(systemsJSON), &run.Systems); err != nil {
		return nil, fmt.Errorf("unmarshaling systems: %w", err)
	}
	if err := json.Unmarshal([]byte(entityTypesJSON), &run.EntityTypes); err != nil {
		return nil, fmt.Errorf("unmarshaling entity types: %w", err)
	}
	if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	run.Status = domain.RunStatus(status)
	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	run.StartedAt = t
	run.CompletedAt = parseNullableTime(completedAt)
	return &run, nil
}
