package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driving"
)

func setupWatchTest(stream *mockProgressStream) func() {
	old := progressStream
	progressStream = stream
	return func() {
		progressStream = old
	}
}

func TestWatchCmd_StreamsUntilComplete(t *testing.T) {
	cleanup := setupWatchTest(&mockProgressStream{
		events: []driving.ProgressEvent{
			{Type: driving.ProgressStart, SyncID: "sync-123", Total: 4},
			{Type: driving.ProgressUpdate, SyncID: "sync-123", Processed: 2, Total: 4, Percentage: 50},
			{Type: driving.ProgressComplete, SyncID: "sync-123", Processed: 4, Total: 4, Percentage: 100},
		},
	})
	defer cleanup()

	out, err := executeCommand("watch", "sync-123", "--org", "org-1")

	assert.NoError(t, err)
	assert.Contains(t, out, "Watching run sync-123 (4 items)")
	assert.Contains(t, out, "2/4 (50.0%)")
	assert.Contains(t, out, "Done. 4/4 processed.")
}

func TestWatchCmd_UnknownRun(t *testing.T) {
	cleanup := setupWatchTest(&mockProgressStream{err: domain.ErrNotFound})
	defer cleanup()

	_, err := executeCommand("watch", "missing", "--org", "org-1")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestWatchCmd_StreamNotConfigured(t *testing.T) {
	old := progressStream
	progressStream = nil
	defer func() {
		progressStream = old
	}()

	_, err := executeCommand("watch", "sync-123", "--org", "org-1")

	assert.ErrorContains(t, err, "progress stream not configured")
}
