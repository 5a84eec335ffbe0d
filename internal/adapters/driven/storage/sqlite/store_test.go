package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "mantis-sync-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
	assert.Equal(t, "sync.db", filepath.Base(store.Path()))
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "mantis-sync-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening runs migrate again against the existing schema.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestStore_Accessors(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.NotNil(t, store.RunStore())
	assert.NotNil(t, store.QueueStore())
	assert.NotNil(t, store.ConflictStore())
	assert.NotNil(t, store.RecordStore())
}
