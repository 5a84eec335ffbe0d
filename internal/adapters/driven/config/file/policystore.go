// Package file provides a file-based implementation of the policy store
// using TOML, with optional hot reload when the backing file changes.
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
	"github.com/nxtleveltech/mantis-sync/internal/logger"
)

// Ensure PolicyStore implements the interface.
var _ driven.PolicyStore = (*PolicyStore)(nil)

// policyFile is the on-disk TOML shape.
type policyFile struct {
	Batch batchSection `toml:"batch"`
}

type batchSection struct {
	Size              int    `toml:"size"`
	MaxRetries        int    `toml:"max_retries"`
	RateLimitPerMin   int    `toml:"rate_limit_per_min"`
	InterBatchDelayMS int    `toml:"inter_batch_delay_ms"`
	Strategy          string `toml:"strategy"`
}

// PolicyStore is a file-based implementation of driven.PolicyStore using
// TOML. A missing file means built-in defaults; a present file overrides
// only the keys it sets.
type PolicyStore struct {
	mu       sync.RWMutex
	filePath string
	defaults domain.BatchConfig
}

// NewPolicyStore creates a new TOML-based policy store.
// If configDir is empty, defaults to ~/.mantis-sync/policy.toml.
func NewPolicyStore(configDir string) (*PolicyStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".mantis-sync")
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &PolicyStore{
		filePath: filepath.Join(configDir, "policy.toml"),
		defaults: domain.DefaultBatchConfig(),
	}

	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Defaults returns the batch configuration applied to runs that do not
// specify their own.
func (s *PolicyStore) Defaults() domain.BatchConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

// Load reads the policy file. A missing file resets to built-in defaults.
func (s *PolicyStore) Load() error {
	cfg := domain.DefaultBatchConfig()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.setDefaults(cfg)
		return nil
	}
	if err != nil {
		return err
	}

	var parsed policyFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return err
	}

	if parsed.Batch.Size > 0 {
		cfg.BatchSize = parsed.Batch.Size
	}
	if parsed.Batch.MaxRetries > 0 {
		cfg.MaxRetries = parsed.Batch.MaxRetries
	}
	if parsed.Batch.RateLimitPerMin > 0 {
		cfg.RateLimitPerMin = parsed.Batch.RateLimitPerMin
	}
	if parsed.Batch.InterBatchDelayMS > 0 {
		cfg.InterBatchDelay = time.Duration(parsed.Batch.InterBatchDelayMS) * time.Millisecond
	}
	if parsed.Batch.Strategy != "" {
		cfg.Strategy = domain.ConflictStrategy(parsed.Batch.Strategy)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	s.setDefaults(cfg.Clamp())
	return nil
}

// Path returns the configuration file path.
func (s *PolicyStore) Path() string {
	return s.filePath
}

// Save writes the current defaults back to the policy file.
func (s *PolicyStore) Save() error {
	s.mu.RLock()
	cfg := s.defaults
	s.mu.RUnlock()

	out := policyFile{
		Batch: batchSection{
			Size:              cfg.BatchSize,
			MaxRetries:        cfg.MaxRetries,
			RateLimitPerMin:   cfg.RateLimitPerMin,
			InterBatchDelayMS: int(cfg.InterBatchDelay / time.Millisecond),
			Strategy:          string(cfg.Strategy),
		},
	}
	data, err := toml.Marshal(out)
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// Watch reloads the policy whenever the backing file is written, until
// ctx ends. A reload failure keeps the previous policy.
func (s *PolicyStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, not the file: editors replace files on save.
	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.filePath {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				if err := s.Load(); err != nil {
					logger.Warn("policy reload failed, keeping previous: %v", err)
					continue
				}
				logger.Info("policy reloaded from %s", s.filePath)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("policy watcher: %v", err)
			}
		}
	}()
	return nil
}

func (s *PolicyStore) setDefaults(cfg domain.BatchConfig) {
	s.mu.Lock()
	s.defaults = cfg
	s.mu.Unlock()
}
