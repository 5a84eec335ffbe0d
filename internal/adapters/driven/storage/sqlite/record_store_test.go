package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

func TestRecordStore_SeedAndRefs(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	records := store.RecordStore().(*recordStore)
	ctx := context.Background()

	require.NoError(t, records.seed(ctx, "org-1", domain.EntityCustomers, "c-1", "int-1", domain.Record{"email": "a@x"}, true))
	require.NoError(t, records.seed(ctx, "org-1", domain.EntityCustomers, "c-2", "int-2", domain.Record{"email": "b@x"}, false))
	require.NoError(t, records.seed(ctx, "org-1", domain.EntityProducts, "p-1", "int-p1", domain.Record{"sku": "S1"}, true))

	refs, err := records.Refs(ctx, "org-1", domain.EntityCustomers)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.False(t, refs["c-1"].Changed())
	assert.True(t, refs["c-2"].Changed())
	assert.Equal(t, "int-1", refs["c-1"].InternalID)
}

func TestRecordStore_GetAndApply(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	records := store.RecordStore()
	ctx := context.Background()

	_, err := records.Get(ctx, "org-1", domain.EntityCustomers, "c-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rec := domain.Record{"email": "a@x", "first_name": "Ann"}
	require.NoError(t, records.Apply(ctx, "org-1", domain.EntityCustomers, "c-1", rec, domain.SystemWooCommerce, "run-1"))

	stored, err := records.Get(ctx, "org-1", domain.EntityCustomers, "c-1")
	require.NoError(t, err)
	assert.Equal(t, rec, stored)

	// An applied record reads as in sync.
	refs, err := records.Refs(ctx, "org-1", domain.EntityCustomers)
	require.NoError(t, err)
	assert.False(t, refs["c-1"].Changed())
}

func TestRecordStore_LastApplied(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	records := store.RecordStore()
	ctx := context.Background()

	require.NoError(t, records.Apply(ctx, "org-1", domain.EntityCustomers, "c-1",
		domain.Record{"email": "a@x"}, domain.SystemWooCommerce, "run-1"))

	system, values, err := records.LastApplied(ctx, "run-1", domain.EntityCustomers, "c-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SystemWooCommerce, system)
	assert.Equal(t, "a@x", values["email"])

	// Ledger entries are scoped per run.
	_, _, err = records.LastApplied(ctx, "run-2", domain.EntityCustomers, "c-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A later apply in the same run supersedes the entry.
	require.NoError(t, records.Apply(ctx, "org-1", domain.EntityCustomers, "c-1",
		domain.Record{"email": "b@x"}, domain.SystemUnleashed, "run-1"))
	system, values, err = records.LastApplied(ctx, "run-1", domain.EntityCustomers, "c-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SystemUnleashed, system)
	assert.Equal(t, "b@x", values["email"])
}
