package config

import "sync"

// Limits are the policy values owned by the backend and patched in after
// startup via getConfigValues.
type Limits struct {
	MaxLoanLimit int
	AlertDays    int
	LimitDays    int
}

// LimitStore hands out the current limits and accepts late remote patches.
// Readers before the patch see the configured defaults rather than crashing
// on missing values.
type LimitStore struct {
	mu     sync.RWMutex
	limits Limits
}

// NewLimitStore seeds the store from static configuration.
func NewLimitStore(cfg *Config) *LimitStore {
	return &LimitStore{limits: Limits{
		MaxLoanLimit: cfg.MaxLoanLimit,
		AlertDays:    cfg.AlertDays,
		LimitDays:    cfg.LimitDays,
	}}
}

// Current returns a copy of the limits in effect.
func (s *LimitStore) Current() Limits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits
}

// Patch overwrites limit values with remote ones. Non-positive fields are
// ignored so a partial or malformed remote payload cannot zero out policy.
func (s *LimitStore) Patch(remote Limits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if remote.MaxLoanLimit > 0 {
		s.limits.MaxLoanLimit = remote.MaxLoanLimit
	}
	if remote.AlertDays > 0 {
		s.limits.AlertDays = remote.AlertDays
	}
	if remote.LimitDays > 0 {
		s.limits.LimitDays = remote.LimitDays
	}
}
