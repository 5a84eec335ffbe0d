package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

var (
	startSystems   []string
	startEntities  []string
	startBatchSize int
	startRetries   int
	startRateLimit int
	startDelayMS   int
	startStrategy  string
	startWatch     bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new synchronisation run",
	Long: `Starts a synchronisation run over the given systems and entity
types. The run is admitted immediately and processed in the background;
use "status" or "watch" to follow it.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringSliceVar(&startSystems, "systems", []string{domain.SystemWooCommerce, domain.SystemUnleashed}, "external systems to sync")
	startCmd.Flags().StringSliceVar(&startEntities, "entities", []string{domain.EntityCustomers}, "entity types to sync")
	startCmd.Flags().IntVar(&startBatchSize, "batch-size", 0, "items per batch (0 uses the policy default)")
	startCmd.Flags().IntVar(&startRetries, "max-retries", 0, "retry budget per item (0 uses the policy default)")
	startCmd.Flags().IntVar(&startRateLimit, "rate-limit", 0, "item writes per minute (0 uses the policy default)")
	startCmd.Flags().IntVar(&startDelayMS, "delay-ms", 0, "delay between batches in milliseconds")
	startCmd.Flags().StringVar(&startStrategy, "strategy", "", "conflict strategy: auto-retry or manual")
	startCmd.Flags().BoolVar(&startWatch, "watch", false, "stream progress after starting")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, _ []string) error {
	if dispatcher == nil {
		return errors.New("dispatcher not configured")
	}
	if orgID == "" {
		return errors.New("--org is required")
	}

	ctx := context.Background()
	result, err := dispatcher.Dispatch(ctx, domain.StartCommand{
		OrgID:       orgID,
		Systems:     startSystems,
		EntityTypes: startEntities,
		Config: domain.BatchConfig{
			BatchSize:       startBatchSize,
			MaxRetries:      startRetries,
			RateLimitPerMin: startRateLimit,
			InterBatchDelay: time.Duration(startDelayMS) * time.Millisecond,
			Strategy:        domain.ConflictStrategy(startStrategy),
		},
	})
	if err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	cmd.Printf("Sync run started: %s (%s)\n", result.Receipt.SyncID, result.Receipt.Status)

	if startWatch {
		return watchRun(ctx, cmd, result.Receipt.SyncID)
	}
	return nil
}
