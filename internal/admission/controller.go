// Package admission enforces per-client rate limits and per-scope daily
// quotas before a request reaches guardrail validation.
package admission

import (
	"context"
	"time"

	"drydock/internal/config"
	"drydock/internal/domain/deploy"
	"drydock/internal/infra/ratelimit"
)

const (
	QuotaDeploy        = "deploy"
	QuotaRollback      = "rollback"
	QuotaBuildRegister = "build-register"
)

// QuotaUsage answers the "remaining" query for policy previews.
type QuotaUsage struct {
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}

// Controller combines minute-window rate limits (per client identity)
// with UTC-day quotas (per delivery-group scope). Limits come from the
// shared Runtime so admin updates take effect immediately.
type Controller struct {
	store   ratelimit.Store
	runtime *config.Runtime
	now     func() time.Time
}

func NewController(store ratelimit.Store, runtime *config.Runtime, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{store: store, runtime: runtime, now: now}
}

// CheckRead enforces the read rate limit for one client identity.
func (c *Controller) CheckRead(ctx context.Context, client string) error {
	return c.checkMinute(ctx, "read", client, c.runtime.Limits().ReadPerMinute)
}

// CheckMutate enforces the mutate rate limit for one client identity.
func (c *Controller) CheckMutate(ctx context.Context, client string) error {
	return c.checkMinute(ctx, "mutate", client, c.runtime.Limits().MutatePerMinute)
}

func (c *Controller) checkMinute(ctx context.Context, limitName, client string, limit int) error {
	decision, err := c.store.Allow(ctx, "minute:"+limitName+":"+client, limit, time.Minute)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return deploy.ErrRateLimited()
	}
	return nil
}

// CheckDaily consumes one unit of a daily quota. The scope is the
// delivery-group id, not the caller, so quotas are tenant-scoped.
func (c *Controller) CheckDaily(ctx context.Context, scope, quota string, limit int) error {
	now := c.now().UTC()
	decision, err := c.store.Allow(ctx, dailyKey(now, scope, quota), limit, untilNextMidnight(now))
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return deploy.ErrQuotaExceeded(scope, quota)
	}
	return nil
}

// DailyUsage reads a quota without consuming it.
func (c *Controller) DailyUsage(ctx context.Context, scope, quota string, limit int) (QuotaUsage, error) {
	now := c.now().UTC()
	used, err := c.store.Usage(ctx, dailyKey(now, scope, quota))
	if err != nil {
		return QuotaUsage{}, err
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaUsage{Used: used, Remaining: remaining, Limit: limit}, nil
}

func dailyKey(now time.Time, scope, quota string) string {
	return "daily:" + now.Format("2006-01-02") + ":" + scope + ":" + quota
}

func untilNextMidnight(now time.Time) time.Duration {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return midnight.Sub(now)
}
