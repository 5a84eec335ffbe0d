package driven

import (
	"context"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
)

// Connector is the contract for one external system's API client. The
// concrete clients (WooCommerce, Unleashed ERP) live outside this
// repository; the engine only depends on this interface.
type Connector interface {
	// System returns the external system identifier.
	System() string

	// ListIDs returns every external record id for an entity type.
	ListIDs(ctx context.Context, orgID, entityType string) ([]string, error)

	// Fetch returns the authoritative external values for a record.
	Fetch(ctx context.Context, orgID, entityType, externalID string) (domain.Record, error)

	// Push writes values to the external system.
	Push(ctx context.Context, orgID, entityType, externalID string, rec domain.Record) error
}

// ConnectorRegistry resolves connectors by system identifier.
type ConnectorRegistry interface {
	// Get returns the connector for a system.
	// Returns domain.ErrNotFound for an unknown system.
	Get(system string) (Connector, error)
}
