package services

import (
	"context"
	"time"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driving"
)

// Default cadences for the progress stream: queue counts are sampled
// every pollInterval, and a throughput metrics event is interleaved
// every metricsEvery samples.
const (
	progressPollInterval = 250 * time.Millisecond
	metricsEvery         = 4
)

var _ driving.ProgressStream = (*ProgressEmitter)(nil)

// ProgressEmitter publishes periodic progress for a run by sampling the
// durable stores. Subscribers are decoupled from the run loop entirely:
// a slow or departed subscriber never slows processing.
type ProgressEmitter struct {
	runs  driven.RunStore
	queue driven.QueueStore

	pollInterval time.Duration
}

// NewProgressEmitter creates a progress stream backed by the given stores.
func NewProgressEmitter(runs driven.RunStore, queue driven.QueueStore) *ProgressEmitter {
	return &ProgressEmitter{
		runs:         runs,
		queue:        queue,
		pollInterval: progressPollInterval,
	}
}

// Subscribe starts a stream for the run. The first event is always a
// start event carrying the current totals; the channel closes after the
// complete event or when ctx is cancelled.
func (e *ProgressEmitter) Subscribe(ctx context.Context, orgID, syncID string) (<-chan driving.ProgressEvent, error) {
	run, err := e.runs.Get(ctx, orgID, syncID)
	if err != nil {
		return nil, err
	}

	events := make(chan driving.ProgressEvent, 8)
	go e.stream(ctx, run, events)
	return events, nil
}

func (e *ProgressEmitter) stream(ctx context.Context, run *domain.SyncRun, events chan<- driving.ProgressEvent) {
	defer close(events)

	processed, total := e.sample(ctx, run)
	if !e.send(ctx, events, event(driving.ProgressStart, run.ID, processed, total)) {
		return
	}

	lastProcessed := processed
	lastSample := time.Now()
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		current, err := e.runs.Get(ctx, run.OrgID, run.ID)
		if err != nil {
			return
		}
		processed, total = e.sample(ctx, run)

		if current.Status.Terminal() {
			e.send(ctx, events, event(driving.ProgressComplete, run.ID, processed, total))
			return
		}

		if !e.send(ctx, events, event(driving.ProgressUpdate, run.ID, processed, total)) {
			return
		}

		if tick%metricsEvery == 0 {
			now := time.Now()
			ev := event(driving.ProgressMetrics, run.ID, processed, total)
			elapsed := now.Sub(lastSample).Seconds()
			if elapsed > 0 && processed > lastProcessed {
				ev.ItemsPerSecond = float64(processed-lastProcessed) / elapsed
				if remaining := total - processed; remaining > 0 {
					ev.EstimatedRemaining = time.Duration(float64(remaining)/ev.ItemsPerSecond) * time.Second
				}
			}
			lastProcessed = processed
			lastSample = now
			if !e.send(ctx, events, ev) {
				return
			}
		}
	}
}

// sample aggregates queue counts across every system of the run.
func (e *ProgressEmitter) sample(ctx context.Context, run *domain.SyncRun) (processed, total int) {
	counts, err := e.queue.Counts(ctx, run.OrgID, run.ID)
	if err != nil {
		return 0, 0
	}
	for _, c := range counts {
		processed += c.Processed + c.Failed + c.Skipped
		total += c.Total
	}
	return processed, total
}

// send delivers an event unless the subscriber's context ends first.
func (e *ProgressEmitter) send(ctx context.Context, events chan<- driving.ProgressEvent, ev driving.ProgressEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func event(t driving.ProgressEventType, syncID string, processed, total int) driving.ProgressEvent {
	ev := driving.ProgressEvent{
		Type:      t,
		SyncID:    syncID,
		Processed: processed,
		Total:     total,
		EmittedAt: time.Now().UTC(),
	}
	if total > 0 {
		ev.Percentage = float64(processed) / float64(total) * 100
	}
	return ev
}
