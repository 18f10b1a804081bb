package ratelimit

import (
	"context"
	"time"
)

// Decision is the result of one counter check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store is a windowed counter. Allow increments the counter for key and
// reports whether it stayed within limit; Usage reads the current count
// without incrementing. A single-process deployment uses the memory
// store; multi-replica deployments swap in the redis store.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
	Usage(ctx context.Context, key string) (int, error)
}
