package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driving"
	"github.com/nxtleveltech/mantis-sync/internal/logger"
)

// pausePollInterval is how often a paused run's loop re-checks its status.
const pausePollInterval = 100 * time.Millisecond

// retryBackoffBase seeds the exponential retry backoff; the delay for
// attempt n is base * 2^(n-1), capped at retryBackoffCap.
const (
	retryBackoffBase = 100 * time.Millisecond
	retryBackoffCap  = 30 * time.Second
)

// Ensure Orchestrator implements the interface.
var _ driving.Orchestrator = (*Orchestrator)(nil)

// Orchestrator coordinates multi-system, multi-entity synchronisation
// runs. The durable stores are the source of truth for every run; the
// orchestrator's own registry of active loops is a cache that a restarted
// process rebuilds on demand.
type Orchestrator struct {
	runs      driven.RunStore
	queue     driven.QueueStore
	records   driven.RecordStore
	registry  driven.ConnectorRegistry
	detector  driving.DeltaDetector
	conflicts *ConflictService
	limiters  *OrgRateLimiters
	policy    driven.PolicyStore

	// workerID tags queue item claims so concurrent orchestrator
	// instances never double-process an item.
	workerID string

	mu     sync.Mutex
	active map[string]*runHandle
}

// runHandle tracks one live background loop.
type runHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(
	runs driven.RunStore,
	queue driven.QueueStore,
	records driven.RecordStore,
	registry driven.ConnectorRegistry,
	detector driving.DeltaDetector,
	conflicts *ConflictService,
) *Orchestrator {
	return &Orchestrator{
		runs:      runs,
		queue:     queue,
		records:   records,
		registry:  registry,
		detector:  detector,
		conflicts: conflicts,
		limiters:  NewOrgRateLimiters(),
		workerID:  uuid.New().String(),
		active:    make(map[string]*runHandle),
	}
}

// SetPolicy installs a policy store whose defaults fill unset batch
// configuration values. Without it the engine defaults apply.
func (o *Orchestrator) SetPolicy(p driven.PolicyStore) {
	o.policy = p
}

// Start validates and admits a new run. Processing happens in a
// background task; the caller gets a receipt immediately.
func (o *Orchestrator) Start(ctx context.Context, orgID string, systems, entityTypes []string, cfg domain.BatchConfig) (*driving.StartReceipt, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: org id required", domain.ErrInvalidInput)
	}
	if err := domain.ValidateRequest(systems, entityTypes); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if o.policy != nil {
		cfg = cfg.WithDefaults(o.policy.Defaults())
	}
	cfg = cfg.Clamp()

	active, err := o.runs.CountActive(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("count active runs: %w", err)
	}
	if active >= domain.MaxConcurrentRuns {
		return nil, fmt.Errorf("%w: %d runs already active for org %s", domain.ErrAdmissionLimit, active, orgID)
	}

	run := &domain.SyncRun{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		Systems:     append([]string(nil), systems...),
		EntityTypes: append([]string(nil), entityTypes...),
		Config:      cfg,
		Status:      domain.RunQueued,
		StartedAt:   time.Now().UTC(),
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	o.launch(run)
	logger.Info("run %s queued for org %s (%d systems, %d entity types)",
		run.ID, orgID, len(systems), len(entityTypes))

	return &driving.StartReceipt{SyncID: run.ID, Status: domain.RunQueued}, nil
}

// Status returns a snapshot computed purely from the durable store, so it
// works whether or not this process hosts the run's loop.
func (o *Orchestrator) Status(ctx context.Context, orgID, syncID string) (*driving.StatusSnapshot, error) {
	run, err := o.runs.Get(ctx, orgID, syncID)
	if err != nil {
		return nil, err
	}
	counts, err := o.queue.Counts(ctx, orgID, syncID)
	if err != nil {
		return nil, fmt.Errorf("queue counts: %w", err)
	}
	stats, err := o.conflicts.Stats(ctx, orgID, syncID)
	if err != nil {
		return nil, fmt.Errorf("conflict stats: %w", err)
	}
	return &driving.StatusSnapshot{
		SyncID:      run.ID,
		OrgID:       run.OrgID,
		Status:      run.Status,
		Queues:      counts,
		Conflicts:   *stats,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}, nil
}

// Pause requests a pause at the next batch boundary.
func (o *Orchestrator) Pause(ctx context.Context, orgID, syncID string) error {
	return o.runs.Transition(ctx, orgID, syncID, domain.RunProcessing, domain.RunPaused, time.Time{})
}

// Resume continues a paused run, restarting the loop if this process
// does not host one (e.g. after a restart).
func (o *Orchestrator) Resume(ctx context.Context, orgID, syncID string) error {
	if err := o.runs.Transition(ctx, orgID, syncID, domain.RunPaused, domain.RunProcessing, time.Time{}); err != nil {
		return err
	}
	run, err := o.runs.Get(ctx, orgID, syncID)
	if err != nil {
		return err
	}
	o.mu.Lock()
	_, live := o.active[syncID]
	o.mu.Unlock()
	if !live {
		o.launch(run)
	}
	return nil
}

// Cancel cooperatively stops a run. Already-applied writes are kept.
func (o *Orchestrator) Cancel(ctx context.Context, orgID, syncID string) error {
	run, err := o.runs.Get(ctx, orgID, syncID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return fmt.Errorf("%w: run is %s", domain.ErrRunTerminal, run.Status)
	}
	if err := o.runs.Transition(ctx, orgID, syncID, run.Status, domain.RunCancelled, time.Now().UTC()); err != nil {
		return err
	}
	// Wake the loop so it observes the cancellation promptly.
	o.mu.Lock()
	if handle, ok := o.active[syncID]; ok {
		handle.cancel()
	}
	o.mu.Unlock()
	logger.Info("run %s cancelled", syncID)
	return nil
}

// WaitForRun blocks until the run's background loop exits. Returns
// immediately when this process hosts no loop for the run.
func (o *Orchestrator) WaitForRun(syncID string) {
	o.mu.Lock()
	handle, ok := o.active[syncID]
	o.mu.Unlock()
	if ok {
		<-handle.done
	}
}

// launch registers a handle and starts the background loop.
func (o *Orchestrator) launch(run *domain.SyncRun) {
	ctx, cancel := context.WithCancel(context.Background())
	handle := &runHandle{cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	o.active[run.ID] = handle
	o.mu.Unlock()

	go func() {
		defer close(handle.done)
		defer func() {
			o.mu.Lock()
			delete(o.active, run.ID)
			o.mu.Unlock()
			cancel()
		}()
		o.orchestrate(ctx, run)
	}()
}

// orchestrate is the background task body for one run: build the queues
// from delta detection, then drain them in rate-limited batches.
func (o *Orchestrator) orchestrate(ctx context.Context, run *domain.SyncRun) {
	if run.Status == domain.RunQueued {
		if err := o.runs.Transition(ctx, run.OrgID, run.ID, domain.RunQueued, domain.RunProcessing, time.Time{}); err != nil {
			// Cancelled before processing began; nothing to do.
			logger.Debug("run %s never started: %v", run.ID, err)
			return
		}
		if err := o.buildQueues(ctx, run); err != nil {
			o.failRun(run, err)
			return
		}
	} else {
		// Recovered loop: no item may stay claimed by a dead worker.
		if err := o.queue.ReleaseClaims(ctx, run.ID, ""); err != nil {
			o.failRun(run, err)
			return
		}
	}

	if err := o.drain(ctx, run); err != nil {
		o.failRun(run, err)
	}
}

// buildQueues runs delta detection for every (system, entity type) pair
// and persists the resulting work.
func (o *Orchestrator) buildQueues(ctx context.Context, run *domain.SyncRun) error {
	for _, system := range run.Systems {
		connector, err := o.registry.Get(system)
		if err != nil {
			return fmt.Errorf("connector for %s: %w", system, err)
		}
		for _, entityType := range run.EntityTypes {
			ids, err := connector.ListIDs(ctx, run.OrgID, entityType)
			if err != nil {
				return fmt.Errorf("list %s/%s: %w", system, entityType, err)
			}
			delta, err := o.detector.DetectDelta(ctx, run.OrgID, entityType, ids, domain.DeltaOptions{})
			if err != nil {
				return fmt.Errorf("detect delta %s/%s: %w", system, entityType, err)
			}
			items := buildItems(run, system, entityType, delta)
			if len(items) == 0 {
				continue
			}
			if err := o.queue.Enqueue(ctx, items); err != nil {
				return fmt.Errorf("enqueue %s/%s: %w", system, entityType, err)
			}
			logger.Debug("run %s: enqueued %d items for %s/%s", run.ID, len(items), system, entityType)
		}
	}
	return nil
}

// buildItems turns a delta into queue items. New and updated records are
// work to apply; deleted ones flow through the queue so the run's counts
// account for them, and end up skipped.
func buildItems(run *domain.SyncRun, system, entityType string, delta *domain.Delta) []domain.QueueItem {
	ids := make([]string, 0, len(delta.New)+len(delta.Updated)+len(delta.Deleted))
	ids = append(ids, delta.New...)
	ids = append(ids, delta.Updated...)
	ids = append(ids, delta.Deleted...)

	items := make([]domain.QueueItem, 0, len(ids))
	for _, externalID := range ids {
		items = append(items, domain.QueueItem{
			ID:         uuid.New().String(),
			OrgID:      run.OrgID,
			SyncID:     run.ID,
			System:     system,
			EntityType: entityType,
			ExternalID: externalID,
			Status:     domain.ItemPending,
		})
	}
	return items
}

// drain processes batches until every queue is exhausted or the run is
// cancelled. Pause and cancel are honoured only at batch boundaries so no
// item is interrupted mid-write.
func (o *Orchestrator) drain(ctx context.Context, run *domain.SyncRun) error {
	limiter := o.limiters.Get(run.OrgID, run.Config.RateLimitPerMin)

	for {
		current, err := o.runs.Get(ctx, run.OrgID, run.ID)
		if err != nil {
			return fmt.Errorf("reload run: %w", err)
		}
		switch current.Status {
		case domain.RunPaused:
			if err := sleepCtx(ctx, pausePollInterval); err != nil {
				// Woken by cancel; loop once more to observe it.
				continue
			}
			continue
		case domain.RunCancelled:
			logger.Info("run %s: cancellation observed, stopping", run.ID)
			return nil
		case domain.RunProcessing:
			// Fall through to the batch.
		default:
			return nil
		}

		progressed := false
		for _, system := range run.Systems {
			batch, err := o.queue.ClaimBatch(ctx, run.OrgID, run.ID, system, run.Config.BatchSize, o.workerID)
			if err != nil {
				return fmt.Errorf("claim batch for %s: %w", system, err)
			}
			if len(batch) == 0 {
				continue
			}
			progressed = true
			for i := range batch {
				if err := limiter.Wait(ctx); err != nil {
					// Cancellation while waiting for tokens: release the
					// rest of the batch untouched and stop the loop.
					return o.queue.ReleaseClaims(context.Background(), run.ID, o.workerID)
				}
				o.processItem(ctx, run, &batch[i])
			}
		}

		if !progressed {
			if err := o.complete(ctx, run); err != nil {
				return err
			}
			return nil
		}

		if err := sleepCtx(ctx, run.Config.InterBatchDelay); err != nil {
			continue // Woken by cancel; the boundary check handles it.
		}
	}
}

// complete finishes a run whose queues hold no more claimable work.
// Parked items stay pending under their open conflicts.
func (o *Orchestrator) complete(ctx context.Context, run *domain.SyncRun) error {
	err := o.runs.Transition(ctx, run.OrgID, run.ID, domain.RunProcessing, domain.RunCompleted, time.Now().UTC())
	if errors.Is(err, domain.ErrRunNotActive) {
		return nil // Paused or cancelled in the meantime; leave it be.
	}
	if err != nil {
		return err
	}
	logger.Info("run %s completed", run.ID)
	return nil
}

// processItem applies one queue item. Per-item failures never abort the
// run: transient errors requeue the item with backoff until its retry
// budget is spent, divergences park it behind a conflict, and anything
// else fails just the item.
func (o *Orchestrator) processItem(ctx context.Context, run *domain.SyncRun, item *domain.QueueItem) {
	connector, err := o.registry.Get(item.System)
	if err != nil {
		o.finishItem(item, domain.ItemFailed, fmt.Sprintf("no connector: %v", err))
		return
	}

	if item.Attempts > 0 {
		// Retried item: back off before touching the external system.
		if err := sleepCtx(ctx, backoffDelay(item.Attempts)); err != nil {
			o.requeueQuietly(ctx, item)
			return
		}
	}

	external, err := connector.Fetch(ctx, item.OrgID, item.EntityType, item.ExternalID)
	if errors.Is(err, domain.ErrNotFound) {
		// Deleted externally; local copy is retained, nothing to write.
		o.finishItem(item, domain.ItemSkipped, "record absent in external system")
		return
	}
	if err != nil {
		o.handleItemError(ctx, run, item, err)
		return
	}

	if parked := o.checkDivergence(ctx, run, item, connector, external); parked {
		return
	}

	if err := o.records.Apply(ctx, item.OrgID, item.EntityType, item.ExternalID, external, item.System, run.ID); err != nil {
		o.handleItemError(ctx, run, item, err)
		return
	}
	o.finishItem(item, domain.ItemCompleted, "")
}

// checkDivergence compares the values about to be written against values
// already applied by a different system in this run. Returns true when
// the item was parked behind a conflict.
func (o *Orchestrator) checkDivergence(ctx context.Context, run *domain.SyncRun, item *domain.QueueItem, connector driven.Connector, external domain.Record) bool {
	appliedBy, appliedValues, err := o.records.LastApplied(ctx, run.ID, item.EntityType, item.ExternalID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && appliedBy == item.System) {
		return false
	}
	if err != nil {
		o.handleItemError(ctx, run, item, err)
		return true
	}

	fields := domain.ComparableFields(item.EntityType)
	cmp := compareWithFields(fields, external, appliedValues)
	if !cmp.HasChanges {
		return false
	}

	if run.Config.Strategy == domain.ConflictAutoRetry {
		// The divergence may be staleness: re-fetch the authoritative
		// value and re-compare, backing off between attempts.
		for attempt := 1; attempt <= run.Config.MaxRetries; attempt++ {
			if err := sleepCtx(ctx, backoffDelay(attempt)); err != nil {
				break
			}
			fresh, err := connector.Fetch(ctx, item.OrgID, item.EntityType, item.ExternalID)
			if err != nil {
				continue
			}
			external = fresh
			cmp = compareWithFields(fields, external, appliedValues)
			if !cmp.HasChanges {
				return false
			}
		}
	}

	ref := o.lookupRef(ctx, item)
	conflict := &domain.Conflict{
		SyncID:        run.ID,
		OrgID:         run.OrgID,
		EntityType:    item.EntityType,
		ExternalID:    item.ExternalID,
		InternalID:    ref,
		SourceSystem:  item.System,
		ChangedFields: cmp.ChangedFields,
		Changes:       cmp.Changes,
	}
	if _, err := o.conflicts.Open(ctx, conflict); err != nil {
		logger.Warn("run %s: failed to open conflict for %s: %v", run.ID, item.ExternalID, err)
		o.finishItem(item, domain.ItemFailed, fmt.Sprintf("conflict bookkeeping: %v", err))
		return true
	}
	if err := o.queue.Park(ctx, item.ID); err != nil {
		logger.Warn("run %s: failed to park item %s: %v", run.ID, item.ID, err)
	}
	return true
}

// lookupRef finds the internal id for an item's record, best effort.
func (o *Orchestrator) lookupRef(ctx context.Context, item *domain.QueueItem) string {
	refs, err := o.records.Refs(ctx, item.OrgID, item.EntityType)
	if err != nil {
		return ""
	}
	return refs[item.ExternalID].InternalID
}

// handleItemError requeues a transient failure while budget remains,
// otherwise marks the item failed.
func (o *Orchestrator) handleItemError(ctx context.Context, run *domain.SyncRun, item *domain.QueueItem, cause error) {
	transient := errors.Is(cause, domain.ErrTransient)
	if transient && item.Attempts+1 < run.Config.MaxRetries {
		if err := o.queue.Requeue(ctx, item.ID, cause.Error()); err != nil {
			logger.Warn("run %s: requeue of %s failed: %v", run.ID, item.ID, err)
		}
		return
	}
	o.finishItem(item, domain.ItemFailed, cause.Error())
}

// finishItem writes an item's terminal status.
func (o *Orchestrator) finishItem(item *domain.QueueItem, status domain.ItemStatus, lastError string) {
	ctx := context.Background()
	var err error
	switch status {
	case domain.ItemCompleted:
		err = o.queue.Complete(ctx, item.ID)
	case domain.ItemSkipped:
		err = o.queue.Skip(ctx, item.ID)
	case domain.ItemFailed:
		err = o.queue.Fail(ctx, item.ID, lastError)
	}
	if err != nil {
		logger.Warn("item %s: failed to mark %s: %v", item.ID, status, err)
	}
}

// requeueQuietly returns an item to its queue without consuming an
// attempt's error budget message.
func (o *Orchestrator) requeueQuietly(ctx context.Context, item *domain.QueueItem) {
	if err := o.queue.ReleaseClaims(ctx, item.SyncID, o.workerID); err != nil {
		logger.Warn("release claims for run %s: %v", item.SyncID, err)
	}
}

// failRun marks a run failed after a systemic loop error.
func (o *Orchestrator) failRun(run *domain.SyncRun, cause error) {
	ctx := context.Background()
	logger.Warn("run %s failed: %v", run.ID, cause)
	current, err := o.runs.Get(ctx, run.OrgID, run.ID)
	if err != nil {
		return
	}
	if current.Status.Terminal() {
		return
	}
	if err := o.runs.Transition(ctx, run.OrgID, run.ID, current.Status, domain.RunFailed, time.Now().UTC()); err != nil {
		logger.Warn("run %s: failed to record failure: %v", run.ID, err)
	}
}

// backoffDelay is the exponential retry curve: base * 2^(attempt-1),
// capped.
func backoffDelay(attempt int) time.Duration {
	delay := retryBackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= retryBackoffCap {
			return retryBackoffCap
		}
	}
	return delay
}

// sleepCtx sleeps unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
