package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driving"
)

var statusCmd = &cobra.Command{
	Use:   "status [sync-id]",
	Short: "Show the status of a synchronisation run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if dispatcher == nil {
		return errors.New("dispatcher not configured")
	}
	if orgID == "" {
		return errors.New("--org is required")
	}

	result, err := dispatcher.Dispatch(context.Background(), domain.StatusCommand{
		OrgID:  orgID,
		SyncID: args[0],
	})
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	printSnapshot(cmd, result.Snapshot)
	return nil
}

func printSnapshot(cmd *cobra.Command, snap *driving.StatusSnapshot) {
	cmd.Printf("Run %s: %s\n", snap.SyncID, snap.Status)
	cmd.Printf("Started: %s\n", snap.StartedAt.Format("2006-01-02 15:04:05"))
	if !snap.CompletedAt.IsZero() {
		cmd.Printf("Completed: %s\n", snap.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	systems := make([]string, 0, len(snap.Queues))
	for system := range snap.Queues {
		systems = append(systems, system)
	}
	sort.Strings(systems)
	for _, system := range systems {
		c := snap.Queues[system]
		cmd.Printf("  %-14s %d/%d processed, %d pending, %d failed, %d skipped\n",
			system+":", c.Processed, c.Total, c.Pending, c.Failed, c.Skipped)
	}

	if snap.Conflicts.Total > 0 {
		cmd.Printf("Conflicts: %d open, %d resolved\n",
			snap.Conflicts.Unresolved, snap.Conflicts.Resolved)
	}
}
