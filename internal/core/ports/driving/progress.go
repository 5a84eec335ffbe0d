package driving

import (
	"context"
	"time"
)

// ProgressEventType tags a progress stream event.
type ProgressEventType string

const (
	ProgressStart    ProgressEventType = "start"
	ProgressUpdate   ProgressEventType = "progress"
	ProgressMetrics  ProgressEventType = "metrics"
	ProgressComplete ProgressEventType = "complete"
)

// ProgressEvent is one emission on a run's progress stream.
type ProgressEvent struct {
	Type   ProgressEventType
	SyncID string

	// Processed and Total describe queue progress across systems.
	Processed int
	Total     int

	// Percentage is Processed/Total*100, 0 when Total is 0.
	Percentage float64

	// ItemsPerSecond and EstimatedRemaining are set on metrics events.
	ItemsPerSecond     float64
	EstimatedRemaining time.Duration

	EmittedAt time.Time
}

// ProgressStream pushes periodic status snapshots for an active run.
// The returned channel closes when the run completes or the context is
// cancelled; either way all stream-side resources are released without
// affecting the run.
type ProgressStream interface {
	Subscribe(ctx context.Context, orgID, syncID string) (<-chan ProgressEvent, error)
}
