package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxtleveltech/mantis-sync/internal/adapters/driven/storage/memory"
	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

func newDetector() (*DeltaDetector, *memory.RecordStore) {
	records := memory.NewRecordStore()
	return NewDeltaDetector(records, memory.NewDeltaCache(16)), records
}

func TestDetectDeltaClassifiesRecords(t *testing.T) {
	detector, records := newDetector()
	ctx := context.Background()

	records.Seed("org-1", domain.EntityCustomers, "c-2", "int-2", domain.Record{"email": "b@x"}, false)
	records.Seed("org-1", domain.EntityCustomers, "c-3", "int-3", domain.Record{"email": "c@x"}, true)
	records.Seed("org-1", domain.EntityCustomers, "c-4", "int-4", domain.Record{"email": "d@x"}, true)

	delta, err := detector.DetectDelta(ctx, "org-1", domain.EntityCustomers, []string{"c-1", "c-2", "c-3"}, domain.DeltaOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"c-1"}, delta.New)
	assert.Equal(t, []string{"c-2"}, delta.Updated)
	assert.Equal(t, []string{"c-3"}, delta.Unchanged)
	assert.Equal(t, []string{"c-4"}, delta.Deleted)
	assert.Equal(t, 4, delta.Total)
	assert.True(t, delta.HasChanges)
	assert.False(t, delta.CacheHit)
	assert.False(t, delta.DetectedAt.IsZero())
}

func TestDetectDeltaCountsInvariant(t *testing.T) {
	detector, records := newDetector()
	ctx := context.Background()

	records.Seed("org-1", domain.EntityCustomers, "c-1", "int-1", domain.Record{"email": "a@x"}, true)

	// Duplicate external ids are counted once.
	delta, err := detector.DetectDelta(ctx, "org-1", domain.EntityCustomers, []string{"c-1", "c-1", "c-2", "c-2"}, domain.DeltaOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, delta.Total)
	assert.True(t, delta.Consistent())
}

func TestDetectDeltaEmptyInput(t *testing.T) {
	detector, _ := newDetector()

	delta, err := detector.DetectDelta(context.Background(), "org-1", domain.EntityCustomers, nil, domain.DeltaOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, delta.Total)
	assert.False(t, delta.HasChanges)

	_, err = detector.DetectDelta(context.Background(), "", domain.EntityCustomers, []string{"c-1"}, domain.DeltaOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDetectDeltaUsesCache(t *testing.T) {
	detector, records := newDetector()
	ctx := context.Background()

	first, err := detector.DetectDelta(ctx, "org-1", domain.EntityCustomers, []string{"c-1"}, domain.DeltaOptions{})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// Seeding after the first detection is invisible through the cache.
	records.Seed("org-1", domain.EntityCustomers, "c-1", "int-1", domain.Record{"email": "a@x"}, true)

	second, err := detector.DetectDelta(ctx, "org-1", domain.EntityCustomers, []string{"c-1"}, domain.DeltaOptions{})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.New, second.New)

	// Input order does not defeat the cache key.
	third, err := detector.DetectDelta(ctx, "org-1", domain.EntityCustomers, []string{"c-1"}, domain.DeltaOptions{SkipCache: true})
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.Equal(t, []string{"c-1"}, third.Unchanged)
}

func TestDetectDeltaCacheKeyOrderInsensitive(t *testing.T) {
	detector, _ := newDetector()
	ctx := context.Background()

	_, err := detector.DetectDelta(ctx, "org-1", domain.EntityCustomers, []string{"c-1", "c-2"}, domain.DeltaOptions{})
	require.NoError(t, err)

	reversed, err := detector.DetectDelta(ctx, "org-1", domain.EntityCustomers, []string{"c-2", "c-1"}, domain.DeltaOptions{})
	require.NoError(t, err)
	assert.True(t, reversed.CacheHit)
}

func TestCompareRecords(t *testing.T) {
	detector, _ := newDetector()

	external := domain.Record{"email": "new@x", "first_name": "Ann", "last_name": "Li", "phone": "1", "company": "Acme"}
	local := domain.Record{"email": "old@x", "first_name": "Ann", "last_name": "Li", "phone": "1", "company": "Acme"}

	cmp := detector.CompareRecords(external, local)
	assert.True(t, cmp.HasChanges)
	assert.Equal(t, 1, cmp.ChangeCount)
	assert.Equal(t, []string{"email"}, cmp.ChangedFields)
	assert.Equal(t, domain.FieldChange{Old: "old@x", New: "new@x"}, cmp.Changes["email"])
	assert.InDelta(t, 80.0, cmp.Similarity, 0.01)

	same := detector.CompareRecords(local, local)
	assert.False(t, same.HasChanges)
	assert.InDelta(t, 100.0, same.Similarity, 0.01)

	// A record with no local counterpart differs on every field.
	missing := detector.CompareRecords(external, nil)
	assert.Equal(t, 5, missing.ChangeCount)
	assert.InDelta(t, 0.0, missing.Similarity, 0.01)
}

func TestDetectBulkDelta(t *testing.T) {
	detector, _ := newDetector()

	external := []domain.Record{
		{"email": "a@x", "first_name": "Ann"},
		{"email": "b@x", "first_name": "Bo"},
		{"email": "c@x", "first_name": "Cy"},
	}
	local := []domain.Record{
		{"email": "b@x", "first_name": "Bob"},
		{"email": "c@x", "first_name": "Cy"},
		{"email": "d@x", "first_name": "Di"},
	}

	bulk, err := detector.DetectBulkDelta(external, local, "email")
	require.NoError(t, err)

	require.Len(t, bulk.New, 1)
	assert.Equal(t, "a@x", bulk.New[0]["email"])
	require.Len(t, bulk.Updated, 1)
	assert.Equal(t, "b@x", bulk.Updated[0].Record["email"])
	assert.Contains(t, bulk.Updated[0].Diff.ChangedFields, "first_name")
	require.Len(t, bulk.Deleted, 1)
	assert.Equal(t, "d@x", bulk.Deleted[0]["email"])
	require.Len(t, bulk.Unchanged, 1)

	assert.Equal(t, 4, bulk.Summary.Total)
	assert.InDelta(t, 75.0, bulk.Summary.PercentageChanged, 0.01)
}

func TestDetectBulkDeltaValidation(t *testing.T) {
	detector, _ := newDetector()

	_, err := detector.DetectBulkDelta(nil, nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = detector.DetectBulkDelta([]domain.Record{{"name": "x"}}, nil, "email")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
