package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

func TestRecordStore_SeedAndRefs(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	store.Seed("org-1", domain.EntityCustomers, "c-1", "int-1", domain.Record{"email": "a@x"}, true)
	store.Seed("org-1", domain.EntityCustomers, "c-2", "int-2", domain.Record{"email": "b@x"}, false)
	store.Seed("org-1", domain.EntityProducts, "p-1", "int-p1", domain.Record{"sku": "S1"}, true)

	refs, err := store.Refs(ctx, "org-1", domain.EntityCustomers)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	// A record synced at its current hash has not drifted.
	assert.False(t, refs["c-1"].Changed())
	assert.True(t, refs["c-2"].Changed())
	assert.Equal(t, "int-1", refs["c-1"].InternalID)
}

func TestRecordStore_Get(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	store.Seed("org-1", domain.EntityCustomers, "c-1", "int-1", domain.Record{"email": "a@x"}, true)

	rec, err := store.Get(ctx, "org-1", domain.EntityCustomers, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "a@x", rec["email"])

	// Returned map is a copy.
	rec["email"] = "mutated"
	again, err := store.Get(ctx, "org-1", domain.EntityCustomers, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "a@x", again["email"])

	_, err = store.Get(ctx, "org-1", domain.EntityCustomers, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStore_Apply_UpdatesRefAndLedger(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	store.Seed("org-1", domain.EntityCustomers, "c-1", "int-1", domain.Record{"email": "old@x"}, false)

	rec := domain.Record{"email": "new@x"}
	require.NoError(t, store.Apply(ctx, "org-1", domain.EntityCustomers, "c-1", rec, domain.SystemWooCommerce, "run-1"))

	stored, err := store.Get(ctx, "org-1", domain.EntityCustomers, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "new@x", stored["email"])

	// After an apply the record reads as in sync.
	refs, err := store.Refs(ctx, "org-1", domain.EntityCustomers)
	require.NoError(t, err)
	assert.False(t, refs["c-1"].Changed())

	system, values, err := store.LastApplied(ctx, "run-1", domain.EntityCustomers, "c-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SystemWooCommerce, system)
	assert.Equal(t, "new@x", values["email"])
}

func TestRecordStore_Apply_NewRecord(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, "org-1", domain.EntityCustomers, "c-1", domain.Record{"email": "a@x"}, domain.SystemUnleashed, "run-1"))

	refs, err := store.Refs(ctx, "org-1", domain.EntityCustomers)
	require.NoError(t, err)
	require.Contains(t, refs, "c-1")
	assert.False(t, refs["c-1"].Changed())
}

func TestRecordStore_LastApplied_ScopedToRun(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, "org-1", domain.EntityCustomers, "c-1", domain.Record{"email": "a@x"}, domain.SystemWooCommerce, "run-1"))

	_, _, err := store.LastApplied(ctx, "run-2", domain.EntityCustomers, "c-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A later apply in the same run overwrites the ledger entry.
	require.NoError(t, store.Apply(ctx, "org-1", domain.EntityCustomers, "c-1", domain.Record{"email": "b@x"}, domain.SystemUnleashed, "run-1"))
	system, values, err := store.LastApplied(ctx, "run-1", domain.EntityCustomers, "c-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SystemUnleashed, system)
	assert.Equal(t, "b@x", values["email"])
}
