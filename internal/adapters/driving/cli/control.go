package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

var pauseCmd = &cobra.Command{
	Use:   "pause [sync-id]",
	Short: "Pause a run at the next batch boundary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "paused", func(syncID string) domain.Command {
			return domain.PauseCommand{OrgID: orgID, SyncID: syncID}
		}, args[0])
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [sync-id]",
	Short: "Resume a paused run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "resumed", func(syncID string) domain.Command {
			return domain.ResumeCommand{OrgID: orgID, SyncID: syncID}
		}, args[0])
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [sync-id]",
	Short: "Cancel a run, keeping already-applied writes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "cancelled", func(syncID string) domain.Command {
			return domain.CancelCommand{OrgID: orgID, SyncID: syncID}
		}, args[0])
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cancelCmd)
}

func runControl(cmd *cobra.Command, verb string, build func(syncID string) domain.Command, syncID string) error {
	if dispatcher == nil {
		return errors.New("dispatcher not configured")
	}
	if orgID == "" {
		return errors.New("--org is required")
	}

	if _, err := dispatcher.Dispatch(context.Background(), build(syncID)); err != nil {
		return fmt.Errorf("%s failed: %w", cmd.Name(), err)
	}

	cmd.Printf("Run %s %s.\n", syncID, verb)
	return nil
}
