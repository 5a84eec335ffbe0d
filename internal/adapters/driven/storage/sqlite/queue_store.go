package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
)

// queueStore implements driven.QueueStore. Items are ordered by a
// per-queue position; requeuing assigns a fresh tail position.
type queueStore struct {
	store *Store
}

var _ driven.QueueStore = (*queueStore)(nil)

// Enqueue appends items in order.
func (s *queueStore) Enqueue(ctx context.Context, items []domain.QueueItem) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning enqueue: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO queue_items (id, org_id, sync_id, system, entity_type, external_id,
				internal_id, status, attempts, last_error, claimed_by, parked, position, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
				(SELECT COALESCE(MAX(position), 0) + 1 FROM queue_items WHERE sync_id = ? AND system = ?),
				?)
		`, item.ID, item.OrgID, item.SyncID, item.System, item.EntityType, item.ExternalID,
			nullString(item.InternalID), string(item.Status), item.Attempts,
			nullString(item.LastError), nullString(item.ClaimedBy), boolToInt(item.Parked),
			item.SyncID, item.System, now)
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("enqueuing item %s: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

// ClaimBatch atomically claims up to limit pending, unparked items in
// queue order.
func (s *queueStore) ClaimBatch(ctx context.Context, orgID, syncID, system string, limit int, claimedBy string) ([]domain.QueueItem, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning claim: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `
		UPDATE queue_items SET status = ?, claimed_by = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM queue_items
			WHERE org_id = ? AND sync_id = ? AND system = ? AND status = ? AND parked = 0
			ORDER BY position LIMIT ?
		)
	`, string(domain.ItemProcessing), claimedBy, now,
		orgID, syncID, system, string(domain.ItemPending), limit)
	if err != nil {
		return nil, fmt.Errorf("claiming items: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, org_id, sync_id, system, entity_type, external_id, internal_id,
			status, attempts, last_error, claimed_by, parked, updated_at
		FROM queue_items
		WHERE sync_id = ? AND system = ? AND status = ? AND claimed_by = ?
		ORDER BY position
	`, syncID, system, string(domain.ItemProcessing), claimedBy)
	if err != nil {
		return nil, fmt.Errorf("reading claimed items: %w", err)
	}
	defer rows.Close()

	var claimed []domain.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	return claimed, nil
}

// Complete marks a processing item completed.
func (s *queueStore) Complete(ctx context.Context, id string) error {
	return s.finish(ctx, id, domain.ItemCompleted, "")
}

// Skip marks a processing item skipped.
func (s *queueStore) Skip(ctx context.Context, id string) error {
	return s.finish(ctx, id, domain.ItemSkipped, "")
}

// Fail marks a processing item failed.
func (s *queueStore) Fail(ctx context.Context, id, lastError string) error {
	return s.finish(ctx, id, domain.ItemFailed, lastError)
}

func (s *queueStore) finish(ctx context.Context, id string, status domain.ItemStatus, lastError string) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = ?, claimed_by = NULL,
			last_error = CASE WHEN ? != '' THEN ? ELSE last_error END,
			updated_at = ?
		WHERE id = ? AND status = ?
	`, string(status), lastError, lastError, time.Now().UTC().Format(time.RFC3339Nano),
		id, string(domain.ItemProcessing))
	if err != nil {
		return fmt.Errorf("finishing item: %w", err)
	}
	return s.checkItemUpdate(ctx, result, id)
}

// Requeue returns a processing item to pending at the tail of its queue.
func (s *queueStore) Requeue(ctx context.Context, id, lastError string) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = ?, claimed_by = NULL, attempts = attempts + 1, last_error = ?,
			position = (SELECT COALESCE(MAX(position), 0) + 1 FROM queue_items q
				WHERE q.sync_id = queue_items.sync_id AND q.system = queue_items.system),
			updated_at = ?
		WHERE id = ? AND status = ?
	`, string(domain.ItemPending), nullString(lastError),
		time.Now().UTC().Format(time.RFC3339Nano), id, string(domain.ItemProcessing))
	if err != nil {
		return fmt.Errorf("requeuing item: %w", err)
	}
	return s.checkItemUpdate(ctx, result, id)
}

// Park holds a processing item back for an open conflict.
func (s *queueStore) Park(ctx context.Context, id string) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE queue_items SET status = ?, claimed_by = NULL, parked = 1, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(domain.ItemPending), time.Now().UTC().Format(time.RFC3339Nano),
		id, string(domain.ItemProcessing))
	if err != nil {
		return fmt.Errorf("parking item: %w", err)
	}
	return s.checkItemUpdate(ctx, result, id)
}

// Unpark releases a parked item for claiming again.
func (s *queueStore) Unpark(ctx context.Context, id string) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE queue_items SET parked = 0, updated_at = ? WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("unparking item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking unpark: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get retrieves a single item.
func (s *queueStore) Get(ctx context.Context, id string) (*domain.QueueItem, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, org_id, sync_id, system, entity_type, external_id, internal_id,
			status, attempts, last_error, claimed_by, parked, updated_at
		FROM queue_items WHERE id = ?
	`, id)
	return scanQueueItem(row)
}

// FindParked returns the parked item for a record within a run.
func (s *queueStore) FindParked(ctx context.Context, syncID, entityType, externalID string) (*domain.QueueItem, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, org_id, sync_id, system, entity_type, external_id, internal_id,
			status, attempts, last_error, claimed_by, parked, updated_at
		FROM queue_items
		WHERE sync_id = ? AND entity_type = ? AND external_id = ? AND parked = 1
		LIMIT 1
	`, syncID, entityType, externalID)
	return scanQueueItem(row)
}

// Counts returns per-system queue counts for a run.
func (s *queueStore) Counts(ctx context.Context, orgID, syncID string) (map[string]domain.QueueCounts, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT system, status, COUNT(*)
		FROM queue_items WHERE org_id = ? AND sync_id = ?
		GROUP BY system, status
	`, orgID, syncID)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]domain.QueueCounts)
	for rows.Next() {
		var system, status string
		var n int
		if err := rows.Scan(&system, &status, &n); err != nil {
			return nil, fmt.Errorf("scanning counts: %w", err)
		}
		c := counts[system]
		c.Total += n
		switch domain.ItemStatus(status) {
		case domain.ItemPending, domain.ItemProcessing:
			c.Pending += n
		case domain.ItemCompleted:
			c.Processed += n
		case domain.ItemFailed:
			c.Failed += n
		case domain.ItemSkipped:
			c.Skipped += n
		}
		counts[system] = c
	}
	return counts, rows.Err()
}

// ReleaseClaims returns processing items claimed by a worker to pending.
// An empty worker id releases every claim held for the run.
func (s *queueStore) ReleaseClaims(ctx context.Context, syncID, claimedBy string) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE queue_items SET status = ?, claimed_by = NULL, updated_at = ?
		WHERE sync_id = ? AND status = ? AND (? = '' OR claimed_by = ?)
	`, string(domain.ItemPending), time.Now().UTC().Format(time.RFC3339Nano),
		syncID, string(domain.ItemProcessing), claimedBy, claimedBy)
	if err != nil {
		return fmt.Errorf("releasing claims: %w", err)
	}
	return nil
}

// checkItemUpdate maps a zero-row update to the right domain error.
func (s *queueStore) checkItemUpdate(ctx context.Context, result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var exists int
	row := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM queue_items WHERE id = ?", id)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("checking item existence: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrInvalidInput
}

func scanQueueItem(row rowScanner) (*domain.QueueItem, error) {
	var item domain.QueueItem
	var internalID, lastError, claimedBy sql.NullString
	var status, updatedAt string
	var parked int
	if err := row.Scan(&item.ID, &item.OrgID, &item.SyncID, &item.System, &item.EntityType,
		&item.ExternalID, &internalID, &status, &item.Attempts, &lastError,
		&claimedBy, &parked, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning queue item: %w", err)
	}
	item.InternalID = internalID.String
	item.LastError = lastError.String
	item.ClaimedBy = claimedBy.String
	item.Status = domain.ItemStatus(status)
	item.Parked = parked == 1
	item.UpdatedAt = parseNullableTime(sql.NullString{String: updatedAt, Valid: true})
	return &item, nil
}
