// Package cli implements the command-line driving adapter. Commands talk
// to the engine exclusively through the command dispatcher, so every
// control path shares the same validation and rate limiting.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driving"
	"github.com/nxtleveltech/mantis-sync/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	verbose bool
	orgID   string
)

// Services injected by the composition root.
var (
	dispatcher     driving.Dispatcher
	progressStream driving.ProgressStream
)

var rootCmd = &cobra.Command{
	Use:   "mantis-sync",
	Short: "Synchronisation engine for supplier and inventory systems",
	Long: `mantis-sync orchestrates data synchronisation between external
commerce systems (WooCommerce, Unleashed) and the internal portal.
Runs are durable: they can be paused, resumed, cancelled and survive
engine restarts.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&orgID, "org", "", "organisation id (required for most commands)")
}

// SetServices injects the engine services the commands depend on.
func SetServices(d driving.Dispatcher, p driving.ProgressStream) {
	dispatcher = d
	progressStream = p
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
