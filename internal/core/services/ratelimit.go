package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// OrgRateLimiters hands out per-organisation token buckets so that one
// organisation's traffic never starves another's. Buckets refill on a
// per-minute basis.
type OrgRateLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewOrgRateLimiters creates an empty limiter registry.
func NewOrgRateLimiters() *OrgRateLimiters {
	return &OrgRateLimiters{
		limiters: make(map[string]*rate.Limiter),
	}
}

// Get returns the organisation's limiter, creating it at perMin tokens
// per minute on first use. A later call with a different rate retunes
// the existing limiter so the most recent run's budget applies.
func (l *OrgRateLimiters) Get(orgID string, perMin int) *rate.Limiter {
	if perMin <= 0 {
		perMin = 1
	}
	limit := rate.Every(time.Minute / time.Duration(perMin))

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[orgID]; ok {
		if limiter.Limit() != limit {
			limiter.SetLimit(limit)
			limiter.SetBurst(perMin)
		}
		return limiter
	}
	limiter := rate.NewLimiter(limit, perMin)
	l.limiters[orgID] = limiter
	return limiter
}
