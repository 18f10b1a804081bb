package config

import "sync"

// RateLimits are the live per-client request limits. Zero disables a
// limit.
type RateLimits struct {
	ReadPerMinute   int `json:"read_per_minute"`
	MutatePerMinute int `json:"mutate_per_minute"`
}

// UIExposure controls which deployment fields dashboards may show.
type UIExposure struct {
	ShowExecutionURL  bool `json:"show_execution_url"`
	ShowFailureDetail bool `json:"show_failure_detail"`
}

// Runtime holds operator-mutable policy. It is shared by the admission
// controller and guardrail engine and updated only through the admin
// service, never by global assignment.
type Runtime struct {
	mu                sync.RWMutex
	mutationsDisabled bool
	limits            RateLimits
	uiExposure        UIExposure
}

func NewRuntime(cfg Config) *Runtime {
	return &Runtime{
		limits: RateLimits{
			ReadPerMinute:   cfg.ReadRateLimit,
			MutatePerMinute: cfg.MutateRateLimit,
		},
		uiExposure: UIExposure{ShowExecutionURL: true},
	}
}

func (r *Runtime) MutationsEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.mutationsDisabled
}

func (r *Runtime) SetMutationsEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutationsDisabled = !enabled
}

func (r *Runtime) Limits() RateLimits {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limits
}

func (r *Runtime) SetLimits(limits RateLimits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limits = limits
}

func (r *Runtime) UIExposure() UIExposure {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.uiExposure
}

func (r *Runtime) SetUIExposure(policy UIExposure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uiExposure = policy
}
