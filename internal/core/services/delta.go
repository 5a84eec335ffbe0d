package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driving"
	"github.com/nxtleveltech/mantis-sync/internal/logger"
)

// Ensure DeltaDetector implements the interface.
var _ driving.DeltaDetector = (*DeltaDetector)(nil)

// DeltaDetector classifies external records against local state.
type DeltaDetector struct {
	records driven.RecordStore
	cache   driven.DeltaCache
	fields  []string
}

// NewDeltaDetector creates a delta detector. The cache is optional - if
// nil, every detection recomputes from the record store. The comparable
// field list for CompareRecords defaults to the customer set.
func NewDeltaDetector(records driven.RecordStore, cache driven.DeltaCache) *DeltaDetector {
	return &DeltaDetector{
		records: records,
		cache:   cache,
		fields:  domain.ComparableFields(domain.EntityCustomers),
	}
}

// DetectDelta compares an external id set against local records.
func (d *DeltaDetector) DetectDelta(ctx context.Context, orgID, entityType string, externalIDs []string, opts domain.DeltaOptions) (*domain.Delta, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: org id required", domain.ErrInvalidInput)
	}

	// Empty input is a complete, empty answer - no store read.
	if len(externalIDs) == 0 {
		return &domain.Delta{DetectedAt: time.Now().UTC()}, nil
	}

	key := deltaCacheKey(orgID, entityType, externalIDs)
	if !opts.SkipCache && d.cache != nil {
		if cached, ok := d.cache.Get(ctx, key); ok {
			logger.Debug("delta cache hit for org %s (%s)", orgID, entityType)
			hit := *cached
			hit.CacheHit = true
			return &hit, nil
		}
	}

	// A store failure propagates; a silently-wrong delta is worse than a
	// failed run.
	refs, err := d.records.Refs(ctx, orgID, entityType)
	if err != nil {
		return nil, fmt.Errorf("reading local refs: %w", err)
	}

	delta := domain.Delta{DetectedAt: time.Now().UTC()}
	seen := make(map[string]bool, len(externalIDs))
	for _, id := range externalIDs {
		if seen[id] {
			continue // Each id counted exactly once.
		}
		seen[id] = true

		ref, ok := refs[id]
		switch {
		case !ok:
			delta.New = append(delta.New, id)
		case ref.Changed():
			delta.Updated = append(delta.Updated, id)
		default:
			delta.Unchanged = append(delta.Unchanged, id)
		}
	}
	for id := range refs {
		if !seen[id] {
			delta.Deleted = append(delta.Deleted, id)
		}
	}
	sort.Strings(delta.Deleted)

	delta.Total = len(delta.New) + len(delta.Updated) + len(delta.Deleted) + len(delta.Unchanged)
	delta.HasChanges = len(delta.New)+len(delta.Updated)+len(delta.Deleted) > 0

	if d.cache != nil {
		d.cache.Put(ctx, key, delta)
	}
	return &delta, nil
}

// CompareRecords diffs two records over the versioned comparable-field
// list.
func (d *DeltaDetector) CompareRecords(external, local domain.Record) domain.Comparison {
	return compareWithFields(d.fields, external, local)
}

// DetectBulkDelta joins two record sets on a key field.
func (d *DeltaDetector) DetectBulkDelta(external, local []domain.Record, keyField string) (*domain.BulkDelta, error) {
	if keyField == "" {
		return nil, fmt.Errorf("%w: key field required", domain.ErrInvalidInput)
	}

	localByKey := make(map[string]domain.Record, len(local))
	for _, rec := range local {
		key, ok := rec[keyField]
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: local record missing key field %q", domain.ErrInvalidInput, keyField)
		}
		localByKey[key] = rec
	}

	result := &domain.BulkDelta{}
	seen := make(map[string]bool, len(external))
	for _, rec := range external {
		key, ok := rec[keyField]
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: external record missing key field %q", domain.ErrInvalidInput, keyField)
		}
		seen[key] = true

		localRec, exists := localByKey[key]
		if !exists {
			result.New = append(result.New, rec)
			continue
		}
		diff := d.CompareRecords(rec, localRec)
		if diff.HasChanges {
			result.Updated = append(result.Updated, domain.BulkUpdate{Record: rec, Diff: diff})
		} else {
			result.Unchanged = append(result.Unchanged, rec)
		}
	}
	for key, rec := range localByKey {
		if !seen[key] {
			result.Deleted = append(result.Deleted, rec)
		}
	}

	total := len(result.New) + len(result.Updated) + len(result.Deleted) + len(result.Unchanged)
	result.Summary.Total = total
	if total > 0 {
		changed := len(result.New) + len(result.Updated) + len(result.Deleted)
		result.Summary.PercentageChanged = float64(changed) / float64(total) * 100
	}
	return result, nil
}

// compareWithFields diffs two records over an explicit field list.
// A nil local record differs on every field.
func compareWithFields(fields []string, external, local domain.Record) domain.Comparison {
	cmp := domain.Comparison{Changes: make(map[string]domain.FieldChange)}
	for _, field := range fields {
		extVal := external[field]
		var localVal string
		if local != nil {
			localVal = local[field]
		}
		if local == nil || extVal != localVal {
			cmp.ChangedFields = append(cmp.ChangedFields, field)
			cmp.Changes[field] = domain.FieldChange{Old: localVal, New: extVal}
		}
	}
	cmp.ChangeCount = len(cmp.ChangedFields)
	cmp.HasChanges = cmp.ChangeCount > 0
	if len(fields) > 0 {
		cmp.Similarity = float64(len(fields)-cmp.ChangeCount) / float64(len(fields)) * 100
	} else {
		cmp.Similarity = 100
	}
	return cmp
}

// deltaCacheKey digests the sorted external id set so identical inputs
// map to one cache entry.
func deltaCacheKey(orgID, entityType string, externalIDs []string) string {
	ids := append([]string(nil), externalIDs...)
	sort.Strings(ids)
	h := sha256.New()
	h.Write([]byte(entityType))
	h.Write([]byte{0})
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return orgID + ":" + hex.EncodeToString(h.Sum(nil))
}
