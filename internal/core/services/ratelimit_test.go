package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestOrgRateLimitersSharePerOrg(t *testing.T) {
	limiters := NewOrgRateLimiters()

	a := limiters.Get("org-1", 30)
	b := limiters.Get("org-1", 30)
	other := limiters.Get("org-2", 30)

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
}

func TestOrgRateLimitersRetuneOnRateChange(t *testing.T) {
	limiters := NewOrgRateLimiters()

	first := limiters.Get("org-1", 50)
	assert.Equal(t, rate.Every(time.Minute/50), first.Limit())
	assert.Equal(t, 50, first.Burst())

	// A stricter run budget tightens the shared limiter in place.
	second := limiters.Get("org-1", 10)
	assert.Same(t, first, second)
	assert.Equal(t, rate.Every(time.Minute/10), second.Limit())
	assert.Equal(t, 10, second.Burst())
}

func TestOrgRateLimitersClampInvalidRate(t *testing.T) {
	limiters := NewOrgRateLimiters()

	limiter := limiters.Get("org-1", 0)
	assert.Equal(t, rate.Every(time.Minute), limiter.Limit())
	assert.Equal(t, 1, limiter.Burst())
}
