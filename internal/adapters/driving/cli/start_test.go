package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driving"
)

func TestStartCmd_Use(t *testing.T) {
	assert.Equal(t, "start", startCmd.Use)
}

func TestStartCmd_DispatchesStartCommand(t *testing.T) {
	mock, cleanup := setupDispatchTest(&driving.CommandResult{
		Receipt: &driving.StartReceipt{SyncID: "sync-123", Status: domain.RunQueued},
	})
	defer cleanup()

	out, err := executeCommand("start", "--org", "org-1",
		"--systems", "woocommerce", "--entities", "customers",
		"--batch-size", "25", "--strategy", "manual", "--delay-ms", "100")

	assert.NoError(t, err)
	assert.Contains(t, out, "sync-123")

	cmd, ok := mock.lastCmd.(domain.StartCommand)
	require.True(t, ok)
	assert.Equal(t, "org-1", cmd.OrgID)
	assert.Equal(t, []string{"woocommerce"}, cmd.Systems)
	assert.Equal(t, []string{"customers"}, cmd.EntityTypes)
	assert.Equal(t, 25, cmd.Config.BatchSize)
	assert.Equal(t, 100*time.Millisecond, cmd.Config.InterBatchDelay)
	assert.Equal(t, domain.ConflictManual, cmd.Config.Strategy)
}

func TestStartCmd_RequiresOrg(t *testing.T) {
	_, cleanup := setupDispatchTest(nil)
	defer cleanup()

	_, err := executeCommand("start", "--org", "")

	assert.ErrorContains(t, err, "--org is required")
}

func TestStartCmd_ServiceNotConfigured(t *testing.T) {
	old := dispatcher
	dispatcher = nil
	defer func() {
		dispatcher = old
	}()

	_, err := executeCommand("start", "--org", "org-1")

	assert.ErrorContains(t, err, "dispatcher not configured")
}
