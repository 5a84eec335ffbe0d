package driving

import (
	"context"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

// DeltaDetector classifies external records against local state.
type DeltaDetector interface {
	// DetectDelta compares an external id set against local records for
	// one organisation and entity type. Empty input yields a zero delta
	// with no store read. A store failure propagates as an error, never
	// as a partial delta.
	DetectDelta(ctx context.Context, orgID, entityType string, externalIDs []string, opts domain.DeltaOptions) (*domain.Delta, error)

	// CompareRecords diffs two records field by field over the versioned
	// comparable-field list. A nil local record differs on every field.
	CompareRecords(external, local domain.Record) domain.Comparison

	// DetectBulkDelta joins two record sets on a key field and
	// classifies every record on either side.
	DetectBulkDelta(external, local []domain.Record, keyField string) (*domain.BulkDelta, error)
}
