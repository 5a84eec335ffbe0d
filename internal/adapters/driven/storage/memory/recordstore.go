package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore.
// It keeps local record values, per-record sync bookkeeping, and the
// applied-values ledger used for cross-system divergence detection.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]domain.Record
	refs    map[string]domain.RecordRef
	applied map[string]appliedEntry
}

type appliedEntry struct {
	system string
	values domain.Record
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]domain.Record),
		refs:    make(map[string]domain.RecordRef),
		applied: make(map[string]appliedEntry),
	}
}

func recordKey(orgID, entityType, externalID string) string {
	return orgID + "/" + entityType + "/" + externalID
}

func appliedKey(syncID, entityType, externalID string) string {
	return syncID + "/" + entityType + "/" + externalID
}

// Seed installs a local record with its ref. Intended for wiring fixtures
// and demo data.
func (s *RecordStore) Seed(orgID, entityType, externalID, internalID string, rec domain.Record, synced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash := hashRecord(rec)
	ref := domain.RecordRef{
		ExternalID: externalID,
		InternalID: internalID,
		Hash:       hash,
	}
	if synced {
		ref.SyncedHash = hash
	}
	s.records[recordKey(orgID, entityType, externalID)] = cloneRecord(rec)
	s.refs[recordKey(orgID, entityType, externalID)] = ref
}

// Refs returns local bookkeeping for every record of an entity type.
func (s *RecordStore) Refs(_ context.Context, orgID, entityType string) (map[string]domain.RecordRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := orgID + "/" + entityType + "/"
	refs := make(map[string]domain.RecordRef)
	for key, ref := range s.refs {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			refs[ref.ExternalID] = ref
		}
	}
	return refs, nil
}

// Get returns the current internal values for a record.
func (s *RecordStore) Get(_ context.Context, orgID, entityType, externalID string) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey(orgID, entityType, externalID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Apply writes reconciled values and updates the applied ledger.
func (s *RecordStore) Apply(_ context.Context, orgID, entityType, externalID string, rec domain.Record, system, syncID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(orgID, entityType, externalID)
	s.records[key] = cloneRecord(rec)
	hash := hashRecord(rec)
	ref := s.refs[key]
	ref.ExternalID = externalID
	ref.Hash = hash
	ref.SyncedHash = hash
	s.refs[key] = ref
	s.applied[appliedKey(syncID, entityType, externalID)] = appliedEntry{
		system: system,
		values: cloneRecord(rec),
	}
	return nil
}

// LastApplied returns the values most recently applied within a run.
func (s *RecordStore) LastApplied(_ context.Context, syncID, entityType, externalID string) (string, domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.applied[appliedKey(syncID, entityType, externalID)]
	if !ok {
		return "", nil, domain.ErrNotFound
	}
	return entry.system, cloneRecord(entry.values), nil
}

// cloneRecord copies a record map.
func cloneRecord(rec domain.Record) domain.Record {
	copied := make(domain.Record, len(rec))
	for k, v := range rec {
		copied[k] = v
	}
	return copied
}

// hashRecord digests a record's fields in stable key order.
func hashRecord(rec domain.Record) string {
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
