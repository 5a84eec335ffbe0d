// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the engine to function:
//
//   - RunStore: Sync run persistence. The durable store is the sole
//     source of truth; in-memory orchestrator state is a cache.
//   - QueueStore: Per-system work queue persistence with atomic claiming.
//   - ConflictStore: Conflict record persistence.
//   - RecordStore: Local business record reads and write-back bookkeeping.
//   - Connector / ConnectorRegistry: External-system API clients. The
//     concrete clients live outside this repository; only the contract
//     is defined here.
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - DeltaCache: Delta memoisation. Without it every detection recomputes.
//   - PolicyStore: Engine policy configuration. Without it defaults apply.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
