package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunStatus_Terminal(t *testing.T) {
	assert.False(t, RunQueued.Terminal())
	assert.False(t, RunProcessing.Terminal())
	assert.False(t, RunPaused.Terminal())
	assert.True(t, RunCompleted.Terminal())
	assert.True(t, RunCancelled.Terminal())
	assert.True(t, RunFailed.Terminal())
}

func TestRunStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    RunStatus
		to      RunStatus
		allowed bool
	}{
		{RunQueued, RunProcessing, true},
		{RunQueued, RunCancelled, true},
		{RunQueued, RunPaused, false},
		{RunQueued, RunCompleted, false},
		{RunProcessing, RunPaused, true},
		{RunProcessing, RunCompleted, true},
		{RunProcessing, RunCancelled, true},
		{RunProcessing, RunFailed, true},
		{RunProcessing, RunQueued, false},
		{RunPaused, RunProcessing, true},
		{RunPaused, RunCancelled, true},
		{RunPaused, RunCompleted, false},
		{RunCompleted, RunProcessing, false},
		{RunCancelled, RunQueued, false},
		{RunFailed, RunProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestDefaultBatchConfig(t *testing.T) {
	cfg := DefaultBatchConfig()

	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.Equal(t, 500*time.Millisecond, cfg.InterBatchDelay)
	assert.Equal(t, ConflictAutoRetry, cfg.Strategy)
}

func TestBatchConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultBatchConfig().Validate())
	assert.NoError(t, BatchConfig{}.Validate())

	assert.ErrorIs(t, BatchConfig{BatchSize: -1}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, BatchConfig{MaxRetries: -1}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, BatchConfig{RateLimitPerMin: -1}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, BatchConfig{InterBatchDelay: -time.Second}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, BatchConfig{Strategy: "merge"}.Validate(), ErrInvalidInput)
}

func TestBatchConfig_Clamp(t *testing.T) {
	// Zero values pick up defaults.
	cfg := BatchConfig{}.Clamp()
	assert.Equal(t, DefaultBatchConfig(), cfg)

	// Excessive values are capped at the policy ceilings.
	cfg = BatchConfig{
		BatchSize:       1000,
		MaxRetries:      50,
		RateLimitPerMin: 9999,
		InterBatchDelay: time.Second,
		Strategy:        ConflictManual,
	}.Clamp()
	assert.Equal(t, MaxBatchSize, cfg.BatchSize)
	assert.Equal(t, MaxRetries, cfg.MaxRetries)
	assert.Equal(t, MaxRateLimitPerMin, cfg.RateLimitPerMin)
	assert.Equal(t, time.Second, cfg.InterBatchDelay)
	assert.Equal(t, ConflictManual, cfg.Strategy)
}

func TestBatchConfig_WithDefaults(t *testing.T) {
	def := BatchConfig{
		BatchSize:       20,
		MaxRetries:      2,
		RateLimitPerMin: 10,
		InterBatchDelay: time.Second,
		Strategy:        ConflictManual,
	}

	// Unset values are filled, set values survive.
	cfg := BatchConfig{BatchSize: 5}.WithDefaults(def)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 10, cfg.RateLimitPerMin)
	assert.Equal(t, time.Second, cfg.InterBatchDelay)
	assert.Equal(t, ConflictManual, cfg.Strategy)

	cfg = def.WithDefaults(DefaultBatchConfig())
	assert.Equal(t, def, cfg)
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(KnownSystems(), KnownEntityTypes()))

	assert.ErrorIs(t, ValidateRequest(nil, []string{EntityCustomers}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateRequest([]string{SystemUnleashed}, nil), ErrInvalidInput)
	assert.ErrorIs(t, ValidateRequest([]string{"shopify"}, []string{EntityCustomers}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateRequest([]string{SystemWooCommerce}, []string{"invoices"}), ErrInvalidInput)
}
