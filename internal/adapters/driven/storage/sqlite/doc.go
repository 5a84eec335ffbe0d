// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - RunStore: Sync run lifecycle persistence
//   - QueueStore: Work queue persistence with atomic claims
//   - ConflictStore: Conflict record persistence
//   - RecordStore: Local record values and the applied ledger
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.mantis-sync/data/sync.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Guarded updates (run transitions, item claims,
// conflict resolution) are single UPDATE statements, so concurrent engine
// instances sharing one database cannot double-apply them.
package sqlite
