package guard

import (
	"context"
	"time"
)

// Record is the failure history of one source address inside the current
// window.
type Record struct {
	Failures    int
	FirstAt     time.Time
	LastAt      time.Time
	PreviousAt  time.Time
	TenantCount int
}

// BlockedUntil is the end of the window once the record reaches max.
func (r Record) BlockedUntil(max int, window time.Duration) (time.Time, bool) {
	if max <= 0 || r.Failures < max {
		return time.Time{}, false
	}
	return r.FirstAt.Add(window), true
}

// Store keeps failure records keyed by source address. Increments for one
// key must serialize; different keys never contend.
type Store interface {
	Get(ctx context.Context, key string, now time.Time) (Record, error)
	Increment(ctx context.Context, key, tenant string, now time.Time) (Record, error)
	Reset(ctx context.Context, key string) error
	Sweep(ctx context.Context, now time.Time) (int, error)
}
