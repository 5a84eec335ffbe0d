package domain

import "time"

// Delta classifies a set of external record identifiers against local
// state. It is a value, never a stored entity.
type Delta struct {
	New       []string
	Updated   []string
	Deleted   []string
	Unchanged []string
	Total     int
	HasChanges bool

	// CacheHit is true when the delta was served from the cache rather
	// than recomputed from the local store.
	CacheHit bool

	DetectedAt time.Time
}

// Consistent reports whether the classification counts every identifier
// exactly once.
func (d Delta) Consistent() bool {
	return len(d.New)+len(d.Updated)+len(d.Deleted)+len(d.Unchanged) == d.Total
}

// Record is a flat field map for one entity, as exchanged with external
// systems. Comparison runs over an explicit versioned field list, never by
// reflecting over arbitrary shapes.
type Record map[string]string

// FieldChange holds the two sides of a diverging field.
type FieldChange struct {
	Old string
	New string
}

// Comparison is the result of a field-by-field record comparison.
type Comparison struct {
	HasChanges    bool
	ChangeCount   int
	ChangedFields []string
	Changes       map[string]FieldChange

	// Similarity is the percentage of comparable fields that match.
	Similarity float64
}

// BulkDelta is the result of joining an external record set against a
// local record set on a key field.
type BulkDelta struct {
	New       []Record
	Updated   []BulkUpdate
	Deleted   []Record
	Unchanged []Record
	Summary   BulkSummary
}

// BulkUpdate pairs an updated external record with its diff.
type BulkUpdate struct {
	Record Record
	Diff   Comparison
}

// BulkSummary aggregates a bulk delta.
type BulkSummary struct {
	Total             int
	PercentageChanged float64
}

// DeltaOptions tunes a delta detection call.
type DeltaOptions struct {
	// SkipCache forces recomputation and refreshes the cache entry.
	SkipCache bool
}
