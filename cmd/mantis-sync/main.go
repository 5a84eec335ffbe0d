package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nxtleveltech/mantis-sync/internal/adapters/driven/config/file"
	"github.com/nxtleveltech/mantis-sync/internal/adapters/driven/connectors/static"
	"github.com/nxtleveltech/mantis-sync/internal/adapters/driven/storage/memory"
	"github.com/nxtleveltech/mantis-sync/internal/adapters/driven/storage/sqlite"
	"github.com/nxtleveltech/mantis-sync/internal/adapters/driving/cli"
	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/services"
	"github.com/nxtleveltech/mantis-sync/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	store, err := sqlite.NewStore(os.Getenv("MANTIS_SYNC_DATA_DIR"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	policy, err := file.NewPolicyStore(os.Getenv("MANTIS_SYNC_CONFIG_DIR"))
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := policy.Watch(ctx); err != nil {
		logger.Warn("policy reload disabled: %v", err)
	}

	registry := newRegistry()
	detector := services.NewDeltaDetector(store.RecordStore(), memory.NewDeltaCache(256))
	conflictSvc := services.NewConflictService(store.ConflictStore(), store.RecordStore(), store.QueueStore(), registry)
	orchestrator := services.NewOrchestrator(
		store.RunStore(), store.QueueStore(), store.RecordStore(),
		registry, detector, conflictSvc,
	)
	orchestrator.SetPolicy(policy)

	dispatcher := services.NewCommandDispatcher(orchestrator, conflictSvc)
	progress := services.NewProgressEmitter(store.RunStore(), store.QueueStore())

	cli.SetServices(dispatcher, progress)
	return cli.Execute()
}

// newRegistry wires the connector registry. The static connectors stand
// in until the per-system API clients are configured.
func newRegistry() *static.Registry {
	registry := static.NewRegistry()
	registry.Register(static.NewConnector(domain.SystemWooCommerce))
	registry.Register(static.NewConnector(domain.SystemUnleashed))
	return registry
}
