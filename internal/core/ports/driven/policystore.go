package driven

import "github.com/nxtleveltech/mantis-sync/internal/core/domain"

// PolicyStore provides access to engine policy configuration: the batch
// defaults applied to unconfigured runs. Implementations handle
// persistence (e.g., TOML files) and may reload when the backing file
// changes.
type PolicyStore interface {
	// Defaults returns the batch configuration applied to runs that do
	// not specify their own. The result is already clamped.
	Defaults() domain.BatchConfig

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}
