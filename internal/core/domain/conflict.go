package domain

import (
	"fmt"
	"time"
)

// ResolutionAction selects how a conflict is settled.
type ResolutionAction string

const (
	// ResolutionAccept commits the external (incoming) value.
	ResolutionAccept ResolutionAction = "accept"

	// ResolutionReject keeps the existing internal value.
	ResolutionReject ResolutionAction = "reject"

	// ResolutionCustom commits caller-supplied data.
	ResolutionCustom ResolutionAction = "custom"
)

// Valid reports whether the action is one of the supported values.
func (a ResolutionAction) Valid() bool {
	switch a {
	case ResolutionAccept, ResolutionReject, ResolutionCustom:
		return true
	}
	return false
}

// Conflict records a field-level disagreement between two systems' values
// for the same logical entity. Immutable except for the resolution fields,
// which are set exactly once.
type Conflict struct {
	// ID is the unique identifier for the conflict.
	ID string

	// SyncID links to the run that detected the conflict.
	SyncID string

	// OrgID is the owning organisation.
	OrgID string

	// EntityType is the entity type of the disputed record.
	EntityType string

	// ExternalID identifies the record in the external system.
	ExternalID string

	// InternalID identifies the matching local record.
	InternalID string

	// SourceSystem is the external system whose incoming values sit on
	// the New side of every change.
	SourceSystem string

	// ChangedFields lists the diverging field names.
	ChangedFields []string

	// Changes maps each diverging field to its two values. Old is the
	// previously applied internal value, New the incoming external one.
	Changes map[string]FieldChange

	// Resolved is set exactly once, false → true.
	Resolved bool

	// ResolutionAction records how the conflict was settled.
	ResolutionAction ResolutionAction

	// ResolvedBy identifies who resolved the conflict.
	ResolvedBy string

	// ResolvedAt is when the conflict was resolved.
	ResolvedAt time.Time

	// DetectedAt is when the orchestrator created the conflict.
	DetectedAt time.Time
}

// ValidateCustomData checks caller-supplied resolution data against the
// conflict's declared fields. Every key must name a changed field.
func (c *Conflict) ValidateCustomData(data map[string]string) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: custom resolution requires data", ErrInvalidInput)
	}
	for field := range data {
		if _, ok := c.Changes[field]; !ok {
			return fmt.Errorf("%w: field %q is not part of the conflict", ErrInvalidInput, field)
		}
	}
	return nil
}

// ConflictStats summarises conflicts for a run.
type ConflictStats struct {
	Total      int
	Resolved   int
	Unresolved int

	// ByField counts open conflicts per diverging field name.
	ByField map[string]int

	// ByAction counts resolved conflicts per resolution action.
	ByAction map[ResolutionAction]int
}
