package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driving"
)

var watchCmd = &cobra.Command{
	Use:   "watch [sync-id]",
	Short: "Stream live progress for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if orgID == "" {
			return errors.New("--org is required")
		}
		return watchRun(context.Background(), cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watchRun consumes the progress stream until the run reaches a terminal
// state. Closing the stream never affects the run itself.
func watchRun(ctx context.Context, cmd *cobra.Command, syncID string) error {
	if progressStream == nil {
		return errors.New("progress stream not configured")
	}

	events, err := progressStream.Subscribe(ctx, orgID, syncID)
	if err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	for event := range events {
		switch event.Type {
		case driving.ProgressStart:
			cmd.Printf("Watching run %s (%d items)\n", event.SyncID, event.Total)
		case driving.ProgressUpdate:
			cmd.Printf("\rProcessing... %d/%d (%.1f%%)", event.Processed, event.Total, event.Percentage)
		case driving.ProgressMetrics:
			cmd.Printf("\r%d/%d (%.1f%%), %.1f items/s, ~%s remaining",
				event.Processed, event.Total, event.Percentage,
				event.ItemsPerSecond, event.EstimatedRemaining.Round(time.Second))
		case driving.ProgressComplete:
			cmd.Printf("\rDone. %d/%d processed.\n", event.Processed, event.Total)
		}
	}
	return nil
}
