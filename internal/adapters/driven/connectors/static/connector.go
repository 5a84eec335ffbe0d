// Package static provides an in-memory connector backed by fixed record
// fixtures. The real per-system API clients live outside this repository;
// this adapter stands in for them in tests and demo wiring.
package static

import (
	"context"
	"sort"
	"sync"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector serves records from an in-memory fixture set.
type Connector struct {
	system string

	mu      sync.RWMutex
	records map[string]domain.Record
	pushed  map[string]domain.Record
}

// NewConnector creates a connector for one system.
func NewConnector(system string) *Connector {
	return &Connector{
		system:  system,
		records: make(map[string]domain.Record),
		pushed:  make(map[string]domain.Record),
	}
}

func fixtureKey(orgID, entityType, externalID string) string {
	return orgID + "/" + entityType + "/" + externalID
}

// Seed installs an external record fixture.
func (c *Connector) Seed(orgID, entityType, externalID string, rec domain.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make(domain.Record, len(rec))
	for k, v := range rec {
		copied[k] = v
	}
	c.records[fixtureKey(orgID, entityType, externalID)] = copied
}

// System returns the external system identifier.
func (c *Connector) System() string {
	return c.system
}

// ListIDs returns every seeded external record id for an entity type.
func (c *Connector) ListIDs(_ context.Context, orgID, entityType string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prefix := orgID + "/" + entityType + "/"
	var ids []string
	for key := range c.records {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			ids = append(ids, key[len(prefix):])
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Fetch returns the fixture values for a record.
func (c *Connector) Fetch(_ context.Context, orgID, entityType, externalID string) (domain.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[fixtureKey(orgID, entityType, externalID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := make(domain.Record, len(rec))
	for k, v := range rec {
		copied[k] = v
	}
	return copied, nil
}

// Push records the written values so tests can assert on them.
func (c *Connector) Push(_ context.Context, orgID, entityType, externalID string, rec domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make(domain.Record, len(rec))
	for k, v := range rec {
		copied[k] = v
	}
	c.pushed[fixtureKey(orgID, entityType, externalID)] = copied
	return nil
}

// Pushed returns what was last pushed for a record, if anything.
func (c *Connector) Pushed(orgID, entityType, externalID string) (domain.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.pushed[fixtureKey(orgID, entityType, externalID)]
	return rec, ok
}

// Ensure Registry implements the interface.
var _ driven.ConnectorRegistry = (*Registry)(nil)

// Registry resolves static connectors by system identifier.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]driven.Connector
}

// NewRegistry creates an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]driven.Connector)}
}

// Register adds a connector, replacing any existing one for its system.
func (r *Registry) Register(c driven.Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.System()] = c
}

// Get returns the connector for a system.
func (r *Registry) Get(system string) (driven.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[system]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}
