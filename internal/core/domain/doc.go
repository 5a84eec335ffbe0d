// Package domain defines the core business entities for the Mantis sync
// engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SyncRun: One orchestrated synchronisation job
//   - QueueItem: One unit of work within a run
//   - Delta: Classification of external records against local state
//   - Conflict: A field-level disagreement between two systems
//   - Command: The tagged control-surface command type
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
