package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
)

// recordStore implements driven.RecordStore.
type recordStore struct {
	store *Store
}

var _ driven.RecordStore = (*recordStore)(nil)

// Refs returns local bookkeeping for every record of an entity type.
func (s *recordStore) Refs(ctx context.Context, orgID, entityType string) (map[string]domain.RecordRef, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT external_id, internal_id, hash, synced_hash
		FROM records WHERE org_id = ? AND entity_type = ?
	`, orgID, entityType)
	if err != nil {
		return nil, fmt.Errorf("reading refs: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]domain.RecordRef)
	for rows.Next() {
		var ref domain.RecordRef
		var internalID, syncedHash sql.NullString
		if err := rows.Scan(&ref.ExternalID, &internalID, &ref.Hash, &syncedHash); err != nil {
			return nil, fmt.Errorf("scanning ref: %w", err)
		}
		ref.InternalID = internalID.String
		ref.SyncedHash = syncedHash.String
		refs[ref.ExternalID] = ref
	}
	return refs, rows.Err()
}

// Get returns the current internal values for a record.
func (s *recordStore) Get(ctx context.Context, orgID, entityType, externalID string) (domain.Record, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT field_values FROM records
		WHERE org_id = ? AND entity_type = ? AND external_id = ?
	`, orgID, entityType, externalID)

	var valuesJSON string
	if err := row.Scan(&valuesJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}
	var rec domain.Record
	if err := json.Unmarshal([]byte(valuesJSON), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling record: %w", err)
	}
	return rec, nil
}

// Apply writes reconciled values and updates the applied ledger.
func (s *recordStore) Apply(ctx context.Context, orgID, entityType, externalID string, rec domain.Record, system, syncID string) error {
	valuesJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling record: %w", err)
	}
	hash := hashRecordFields(rec)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning apply: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (org_id, entity_type, external_id, internal_id, field_values, hash, synced_hash, updated_at)
		VALUES (?, ?, ?, NULL, ?, ?, ?, ?)
		ON CONFLICT(org_id, entity_type, external_id) DO UPDATE SET
			field_values = excluded.field_values,
			hash = excluded.hash,
			synced_hash = excluded.synced_hash,
			updated_at = excluded.updated_at
	`, orgID, entityType, externalID, string(valuesJSON), hash, hash, now)
	if err != nil {
		return fmt.Errorf("saving record: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO applied_records (sync_id, entity_type, external_id, system, field_values, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(sync_id, entity_type, external_id) DO UPDATE SET
			system = excluded.system,
			field_values = excluded.field_values,
			applied_at = excluded.applied_at
	`, syncID, entityType, externalID, system, string(valuesJSON), now)
	if err != nil {
		return fmt.Errorf("saving applied ledger: %w", err)
	}

	return tx.Commit()
}

// LastApplied returns the values most recently applied within a run.
func (s *recordStore) LastApplied(ctx context.Context, syncID, entityType, externalID string) (string, domain.Record, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT system, field_values FROM applied_records
		WHERE sync_id = ? AND entity_type = ? AND external_id = ?
	`, syncID, entityType, externalID)

	var system, valuesJSON string
	if err := row.Scan(&system, &valuesJSON); err != nil {
		if err == sql.ErrNoRows {
			return "", nil, domain.ErrNotFound
		}
		return "", nil, fmt.Errorf("scanning applied ledger: %w", err)
	}
	var rec domain.Record
	if err := json.Unmarshal([]byte(valuesJSON), &rec); err != nil {
		return "", nil, fmt.Errorf("unmarshaling applied values: %w", err)
	}
	return system, rec, nil
}

// seed installs a local record with its ref for tests and demo wiring.
func (s *recordStore) seed(ctx context.Context, orgID, entityType, externalID, internalID string, rec domain.Record, synced bool) error {
	valuesJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling record: %w", err)
	}
	hash := hashRecordFields(rec)
	syncedHash := ""
	if synced {
		syncedHash = hash
	}
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO records (org_id, entity_type, external_id, internal_id, field_values, hash, synced_hash, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id, entity_type, external_id) DO UPDATE SET
			internal_id = excluded.internal_id,
			field_values = excluded.field_values,
			hash = excluded.hash,
			synced_hash = excluded.synced_hash,
			updated_at = excluded.updated_at
	`, orgID, entityType, externalID, nullString(internalID), string(valuesJSON),
		hash, nullString(syncedHash), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("seeding record: %w", err)
	}
	return nil
}

// hashRecordFields digests a record's fields in stable key order. Hashes
// are only ever compared against others produced by this store.
func hashRecordFields(rec domain.Record) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(rec[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
