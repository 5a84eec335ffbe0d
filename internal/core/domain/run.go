package domain

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

// Run lifecycle states. A run is terminal at completed, cancelled or failed.
const (
	RunQueued     RunStatus = "queued"
	RunProcessing RunStatus = "processing"
	RunPaused     RunStatus = "paused"
	RunCompleted  RunStatus = "completed"
	RunCancelled  RunStatus = "cancelled"
	RunFailed     RunStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunCancelled, RunFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether a transition from s to next is legal.
// The machine is queued → processing ⇄ paused → {completed|cancelled|failed}.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case RunQueued:
		return next == RunProcessing || next == RunCancelled || next == RunFailed
	case RunProcessing:
		return next == RunPaused || next.Terminal()
	case RunPaused:
		return next == RunProcessing || next == RunCancelled || next == RunFailed
	}
	return false
}

// Known external systems the engine can synchronise with.
const (
	SystemWooCommerce = "woocommerce"
	SystemUnleashed   = "unleashed"
)

// Known entity types.
const (
	EntityCustomers = "customers"
	EntityProducts  = "products"
	EntityOrders    = "orders"
	EntityInventory = "inventory"
)

// KnownSystems lists every external system the engine understands.
func KnownSystems() []string {
	return []string{SystemWooCommerce, SystemUnleashed}
}

// KnownEntityTypes lists every entity type the engine understands.
func KnownEntityTypes() []string {
	return []string{EntityCustomers, EntityProducts, EntityOrders, EntityInventory}
}

// Policy ceilings applied to every run's batch configuration.
const (
	MaxBatchSize       = 200
	MaxRetries         = 5
	MaxRateLimitPerMin = 50

	// MaxConcurrentRuns is the per-organisation admission limit.
	MaxConcurrentRuns = 5
)

// ConflictStrategy selects how the orchestrator reacts to a detected
// cross-system divergence.
type ConflictStrategy string

const (
	// ConflictAutoRetry re-fetches the authoritative value and retries the
	// write with backoff before leaving the conflict open for review.
	ConflictAutoRetry ConflictStrategy = "auto-retry"

	// ConflictManual leaves every detected conflict open immediately.
	ConflictManual ConflictStrategy = "manual"
)

// BatchConfig controls batching, retry and rate behaviour for one run.
// Values are clamped to policy ceilings when the run is created.
type BatchConfig struct {
	// BatchSize is the maximum number of queue items drained per batch.
	BatchSize int

	// MaxRetries is the per-item retry budget for transient failures.
	MaxRetries int

	// RateLimitPerMin is the token refill rate for item writes, scoped
	// to the run's organisation.
	RateLimitPerMin int

	// InterBatchDelay is how long the loop sleeps between batches.
	InterBatchDelay time.Duration

	// Strategy selects conflict handling. Defaults to auto-retry.
	Strategy ConflictStrategy
}

// DefaultBatchConfig returns the engine defaults for an unconfigured run.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize:       50,
		MaxRetries:      3,
		RateLimitPerMin: 30,
		InterBatchDelay: 500 * time.Millisecond,
		Strategy:        ConflictAutoRetry,
	}
}

// Validate rejects configurations that cannot be clamped into shape.
func (c BatchConfig) Validate() error {
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch size must not be negative", ErrInvalidInput)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidInput)
	}
	if c.RateLimitPerMin < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidInput)
	}
	if c.InterBatchDelay < 0 {
		return fmt.Errorf("%w: inter-batch delay must not be negative", ErrInvalidInput)
	}
	switch c.Strategy {
	case "", ConflictAutoRetry, ConflictManual:
	default:
		return fmt.Errorf("%w: unknown conflict strategy %q", ErrInvalidInput, c.Strategy)
	}
	return nil
}

// WithDefaults fills zero values from the given defaults. Set values are
// kept as-is.
func (c BatchConfig) WithDefaults(def BatchConfig) BatchConfig {
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RateLimitPerMin == 0 {
		c.RateLimitPerMin = def.RateLimitPerMin
	}
	if c.InterBatchDelay == 0 {
		c.InterBatchDelay = def.InterBatchDelay
	}
	if c.Strategy == "" {
		c.Strategy = def.Strategy
	}
	return c
}

// Clamp fills defaults for zero values and caps everything at the policy
// ceilings. The result is always a runnable configuration.
func (c BatchConfig) Clamp() BatchConfig {
	def := DefaultBatchConfig()
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.MaxRetries > MaxRetries {
		c.MaxRetries = MaxRetries
	}
	if c.RateLimitPerMin == 0 {
		c.RateLimitPerMin = def.RateLimitPerMin
	}
	if c.RateLimitPerMin > MaxRateLimitPerMin {
		c.RateLimitPerMin = MaxRateLimitPerMin
	}
	if c.InterBatchDelay == 0 {
		c.InterBatchDelay = def.InterBatchDelay
	}
	if c.Strategy == "" {
		c.Strategy = def.Strategy
	}
	return c
}

// SyncRun is one orchestrated synchronisation job spanning one or more
// systems and entity types. The durable store owns the authoritative copy;
// any in-memory instance is a cache.
type SyncRun struct {
	// ID is the unique identifier for the run.
	ID string

	// OrgID is the owning organisation. All state is scoped by it.
	OrgID string

	// Systems are the external systems included in the run.
	Systems []string

	// EntityTypes are the entity types included in the run.
	EntityTypes []string

	// Config is the clamped batch configuration.
	Config BatchConfig

	// Status is the current lifecycle state.
	Status RunStatus

	// StartedAt is when the run was created.
	StartedAt time.Time

	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// ValidateRequest checks a start request's systems and entity types against
// the known sets. Empty slices are rejected.
func ValidateRequest(systems, entityTypes []string) error {
	if len(systems) == 0 {
		return fmt.Errorf("%w: at least one system required", ErrInvalidInput)
	}
	if len(entityTypes) == 0 {
		return fmt.Errorf("%w: at least one entity type required", ErrInvalidInput)
	}
	for _, sys := range systems {
		if !contains(KnownSystems(), sys) {
			return fmt.Errorf("%w: unknown system %q", ErrInvalidInput, sys)
		}
	}
	for _, et := range entityTypes {
		if !contains(KnownEntityTypes(), et) {
			return fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, et)
		}
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
