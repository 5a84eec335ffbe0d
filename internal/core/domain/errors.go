package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAdmissionLimit indicates the organisation already has the maximum
	// number of concurrently processing runs. No run is created.
	ErrAdmissionLimit = errors.New("concurrent run limit reached")

	// ErrRunNotActive indicates a pause/resume was requested for a run
	// that is not in a state the transition applies to.
	ErrRunNotActive = errors.New("run not active")

	// ErrRunTerminal indicates the run has already reached a terminal state.
	ErrRunTerminal = errors.New("run already terminal")

	// ErrRateLimited indicates the per-organisation control-call rate
	// limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient indicates a retryable failure from an external system
	// (timeout, 5xx). Items failing with it are retried up to the run's
	// retry budget before being marked failed.
	ErrTransient = errors.New("transient external error")

	// ErrConflictDetected indicates a cross-system field divergence.
	// It is routed to the conflict resolver, never surfaced as a failure.
	ErrConflictDetected = errors.New("conflict detected")

	// ErrItemClaimed indicates a queue item is already claimed by another
	// worker. The claiming transition is atomic in the store.
	ErrItemClaimed = errors.New("queue item already claimed")
)
