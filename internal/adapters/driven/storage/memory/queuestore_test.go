package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

func enqueueItems(t *testing.T, store *QueueStore, n int) []string {
	t.Helper()
	items := make([]domain.QueueItem, 0, n)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("item-%d", i)
		ids = append(ids, id)
		items = append(items, domain.QueueItem{
			ID:         id,
			OrgID:      "org-1",
			SyncID:     "run-1",
			System:     domain.SystemWooCommerce,
			EntityType: domain.EntityCustomers,
			ExternalID: fmt.Sprintf("c-%d", i),
			Status:     domain.ItemPending,
		})
	}
	require.NoError(t, store.Enqueue(context.Background(), items))
	return ids
}

func TestQueueStore_ClaimBatch_OrderAndLimit(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()
	enqueueItems(t, store, 5)

	batch, err := store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 3, "worker-1")
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, "item-0", batch[0].ID)
	assert.Equal(t, "item-2", batch[2].ID)
	for _, item := range batch {
		assert.Equal(t, domain.ItemProcessing, item.Status)
		assert.Equal(t, "worker-1", item.ClaimedBy)
	}

	// Claimed items are invisible to a second claimer.
	batch, err = store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 10, "worker-2")
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "item-3", batch[0].ID)
}

func TestQueueStore_ClaimBatch_SkipsParked(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()
	enqueueItems(t, store, 2)

	batch, err := store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 1, "worker-1")
	require.NoError(t, err)
	require.NoError(t, store.Park(ctx, batch[0].ID))

	batch, err = store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 10, "worker-1")
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "item-1", batch[0].ID)

	// Unparking makes the item claimable again.
	require.NoError(t, store.Complete(ctx, "item-1"))
	require.NoError(t, store.Unpark(ctx, "item-0"))
	batch, err = store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 10, "worker-1")
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "item-0", batch[0].ID)
}

func TestQueueStore_TerminalTransitions(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()
	enqueueItems(t, store, 3)

	_, err := store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 3, "worker-1")
	require.NoError(t, err)

	require.NoError(t, store.Complete(ctx, "item-0"))
	require.NoError(t, store.Skip(ctx, "item-1"))
	require.NoError(t, store.Fail(ctx, "item-2", "boom"))

	// Terminal states are final.
	assert.ErrorIs(t, store.Complete(ctx, "item-0"), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.Fail(ctx, "item-0", "late"), domain.ErrInvalidInput)

	item, err := store.Get(ctx, "item-2")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemFailed, item.Status)
	assert.Equal(t, "boom", item.LastError)
	assert.Empty(t, item.ClaimedBy)
}

func TestQueueStore_Complete_PendingItem(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()
	enqueueItems(t, store, 1)

	// An unclaimed item cannot jump straight to a terminal state.
	assert.ErrorIs(t, store.Complete(ctx, "item-0"), domain.ErrInvalidInput)
}

func TestQueueStore_Requeue_MovesToTail(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()
	enqueueItems(t, store, 3)

	batch, err := store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 1, "worker-1")
	require.NoError(t, err)
	require.Equal(t, "item-0", batch[0].ID)

	require.NoError(t, store.Requeue(ctx, "item-0", "timeout"))

	item, err := store.Get(ctx, "item-0")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemPending, item.Status)
	assert.Equal(t, 1, item.Attempts)
	assert.Equal(t, "timeout", item.LastError)

	// The requeued item now comes after the untouched ones.
	batch, err = store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 3, "worker-1")
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, "item-1", batch[0].ID)
	assert.Equal(t, "item-0", batch[2].ID)
}

func TestQueueStore_Requeue_RequiresProcessing(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()
	enqueueItems(t, store, 1)

	assert.ErrorIs(t, store.Requeue(ctx, "item-0", "early"), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.Requeue(ctx, "missing", ""), domain.ErrNotFound)
}

func TestQueueStore_Counts(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()
	enqueueItems(t, store, 4)

	_, err := store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 3, "worker-1")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "item-0"))
	require.NoError(t, store.Skip(ctx, "item-1"))
	require.NoError(t, store.Fail(ctx, "item-2", "boom"))

	counts, err := store.Counts(ctx, "org-1", "run-1")
	require.NoError(t, err)
	c := counts[domain.SystemWooCommerce]
	assert.Equal(t, 4, c.Total)
	assert.Equal(t, 1, c.Pending)
	assert.Equal(t, 1, c.Processed)
	assert.Equal(t, 1, c.Skipped)
	assert.Equal(t, 1, c.Failed)
	assert.False(t, c.Done())
}

func TestQueueStore_ReleaseClaims(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()
	enqueueItems(t, store, 3)

	_, err := store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 2, "worker-1")
	require.NoError(t, err)

	require.NoError(t, store.ReleaseClaims(ctx, "run-1", "worker-1"))

	batch, err := store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 10, "worker-2")
	require.NoError(t, err)
	assert.Len(t, batch, 3)
}

func TestQueueStore_ReleaseClaims_AllWorkers(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()
	enqueueItems(t, store, 2)

	_, err := store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 1, "worker-1")
	require.NoError(t, err)
	_, err = store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 1, "worker-2")
	require.NoError(t, err)

	// An empty worker id releases every claim held for the run.
	require.NoError(t, store.ReleaseClaims(ctx, "run-1", ""))

	batch, err := store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 10, "worker-3")
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}

func TestQueueStore_FindParked(t *testing.T) {
	store := NewQueueStore()
	ctx := context.Background()
	enqueueItems(t, store, 1)

	_, err := store.FindParked(ctx, "run-1", domain.EntityCustomers, "c-0")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.ClaimBatch(ctx, "org-1", "run-1", domain.SystemWooCommerce, 1, "worker-1")
	require.NoError(t, err)
	require.NoError(t, store.Park(ctx, "item-0"))

	item, err := store.FindParked(ctx, "run-1", domain.EntityCustomers, "c-0")
	require.NoError(t, err)
	assert.Equal(t, "item-0", item.ID)
	assert.True(t, item.Parked)
	assert.Equal(t, domain.ItemPending, item.Status)
}
