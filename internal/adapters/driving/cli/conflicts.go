package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts [sync-id]",
	Short: "List open conflicts for a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runConflicts,
}

var (
	resolveAction string
	resolveSet    []string
	resolveBy     string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [conflict-id]",
	Short: "Resolve a conflict",
	Long: `Resolves an open conflict. The accept action commits the incoming
external values, reject keeps the current internal values, and custom
commits the field values given with --set.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveAction, "action", "accept", "resolution action: accept, reject or custom")
	resolveCmd.Flags().StringSliceVar(&resolveSet, "set", nil, "field=value pairs for a custom resolution")
	resolveCmd.Flags().StringVar(&resolveBy, "by", "cli", "who is resolving the conflict")
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(resolveCmd)
}

func runConflicts(cmd *cobra.Command, args []string) error {
	if dispatcher == nil {
		return errors.New("dispatcher not configured")
	}
	if orgID == "" {
		return errors.New("--org is required")
	}

	result, err := dispatcher.Dispatch(context.Background(), domain.ConflictsCommand{
		OrgID:  orgID,
		SyncID: args[0],
	})
	if err != nil {
		return fmt.Errorf("conflicts failed: %w", err)
	}

	if len(result.Conflicts) == 0 {
		cmd.Println("No open conflicts.")
		return nil
	}

	cmd.Printf("%d open conflict(s):\n", len(result.Conflicts))
	for _, c := range result.Conflicts {
		cmd.Printf("  %s  %s/%s from %s\n", c.ID, c.EntityType, c.ExternalID, c.SourceSystem)
		for _, field := range c.ChangedFields {
			change := c.Changes[field]
			cmd.Printf("    %s: %q -> %q\n", field, change.Old, change.New)
		}
	}
	if result.ConflictStats != nil {
		cmd.Printf("Total %d, resolved %d.\n", result.ConflictStats.Total, result.ConflictStats.Resolved)
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	if dispatcher == nil {
		return errors.New("dispatcher not configured")
	}
	if orgID == "" {
		return errors.New("--org is required")
	}

	custom, err := parseFieldPairs(resolveSet)
	if err != nil {
		return err
	}

	_, err = dispatcher.Dispatch(context.Background(), domain.ResolveConflictCommand{
		OrgID:      orgID,
		ConflictID: args[0],
		Resolution: domain.ResolutionAction(resolveAction),
		CustomData: custom,
		ResolvedBy: resolveBy,
	})
	if err != nil {
		return fmt.Errorf("resolve failed: %w", err)
	}

	cmd.Printf("Conflict %s resolved (%s).\n", args[0], resolveAction)
	return nil
}

// parseFieldPairs turns --set field=value flags into a map.
func parseFieldPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid --set value %q, expected field=value", pair)
		}
		out[field] = value
	}
	return out, nil
}
