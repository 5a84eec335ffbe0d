package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

func newConflict(id, externalID string, detectedAt time.Time) *domain.Conflict {
	return &domain.Conflict{
		ID:            id,
		SyncID:        "run-1",
		OrgID:         "org-1",
		EntityType:    domain.EntityCustomers,
		ExternalID:    externalID,
		SourceSystem:  domain.SystemUnleashed,
		ChangedFields: []string{"email"},
		Changes: map[string]domain.FieldChange{
			"email": {Old: "a@x", New: "b@x"},
		},
		DetectedAt: detectedAt,
	}
}

func TestConflictStore_CreateAndGet(t *testing.T) {
	store := NewConflictStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newConflict("cf-1", "c-1", time.Now().UTC())))

	conflict, err := store.Get(ctx, "org-1", "cf-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", conflict.ExternalID)
	assert.False(t, conflict.Resolved)

	_, err = store.Get(ctx, "org-2", "cf-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = store.Create(ctx, newConflict("cf-1", "c-1", time.Now().UTC()))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestConflictStore_Resolve_ExactlyOnce(t *testing.T) {
	store := NewConflictStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newConflict("cf-1", "c-1", time.Now().UTC())))

	resolvedAt := time.Now().UTC()
	require.NoError(t, store.Resolve(ctx, "cf-1", domain.ResolutionAccept, "ops", resolvedAt))

	err := store.Resolve(ctx, "cf-1", domain.ResolutionReject, "later", time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	conflict, err := store.Get(ctx, "org-1", "cf-1")
	require.NoError(t, err)
	assert.True(t, conflict.Resolved)
	assert.Equal(t, domain.ResolutionAccept, conflict.ResolutionAction)
	assert.Equal(t, "ops", conflict.ResolvedBy)
	assert.Equal(t, resolvedAt, conflict.ResolvedAt)

	assert.ErrorIs(t, store.Resolve(ctx, "missing", domain.ResolutionAccept, "ops", resolvedAt), domain.ErrNotFound)
}

func TestConflictStore_Unresolved_OldestFirst(t *testing.T) {
	store := NewConflictStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Create(ctx, newConflict("cf-new", "c-2", now)))
	require.NoError(t, store.Create(ctx, newConflict("cf-old", "c-1", now.Add(-time.Hour))))
	require.NoError(t, store.Create(ctx, newConflict("cf-done", "c-3", now.Add(-2*time.Hour))))
	require.NoError(t, store.Resolve(ctx, "cf-done", domain.ResolutionReject, "ops", now))

	open, err := store.Unresolved(ctx, "org-1", "run-1")
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "cf-old", open[0].ID)
	assert.Equal(t, "cf-new", open[1].ID)
}

func TestConflictStore_FindOpen(t *testing.T) {
	store := NewConflictStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newConflict("cf-1", "c-1", time.Now().UTC())))

	found, err := store.FindOpen(ctx, "run-1", domain.EntityCustomers, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "cf-1", found.ID)

	require.NoError(t, store.Resolve(ctx, "cf-1", domain.ResolutionAccept, "ops", time.Now().UTC()))
	_, err = store.FindOpen(ctx, "run-1", domain.EntityCustomers, "c-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConflictStore_Stats(t *testing.T) {
	store := NewConflictStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Create(ctx, newConflict("cf-1", "c-1", now)))
	require.NoError(t, store.Create(ctx, newConflict("cf-2", "c-2", now)))
	require.NoError(t, store.Resolve(ctx, "cf-2", domain.ResolutionCustom, "ops", now))

	stats, err := store.Stats(ctx, "org-1", "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 1, stats.Unresolved)
	assert.Equal(t, 1, stats.ByField["email"])
	assert.Equal(t, 1, stats.ByAction[domain.ResolutionCustom])
}

func TestConflictStore_Get_ReturnsCopy(t *testing.T) {
	store := NewConflictStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newConflict("cf-1", "c-1", time.Now().UTC())))

	conflict, err := store.Get(ctx, "org-1", "cf-1")
	require.NoError(t, err)
	conflict.Changes["email"] = domain.FieldChange{Old: "x", New: "y"}
	conflict.ChangedFields[0] = "mutated"

	stored, err := store.Get(ctx, "org-1", "cf-1")
	require.NoError(t, err)
	assert.Equal(t, "b@x", stored.Changes["email"].New)
	assert.Equal(t, "email", stored.ChangedFields[0])
}
