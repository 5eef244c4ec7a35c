package sink

import (
	"context"
	"time"

	"github.com/banshee-data/pose.report/internal/timeutil"
)

// Pruner is implemented by stores that can drop old events.
type Pruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Retention periodically deletes events older than MaxAge.
type Retention struct {
	Store    Pruner
	MaxAge   time.Duration
	Interval time.Duration // how often to run, default 1h
	Clock    timeutil.Clock
}

// RunOnce deletes events older than MaxAge and returns the count removed.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	cutoff := clock.Now().Add(-r.MaxAge)
	n, err := r.Store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logf("retention: deleted %d events before %s", n, cutoff.UTC().Format(time.RFC3339))
	}
	return n, nil
}

// Run prunes once immediately and then every Interval until ctx ends. A
// non-positive MaxAge disables pruning and Run returns at once.
func (r *Retention) Run(ctx context.Context) {
	if r.MaxAge <= 0 || r.Store == nil {
		return
	}
	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	interval := r.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	for {
		if _, err := r.RunOnce(ctx); err != nil {
			logf("retention run error: %v", err)
		}
		if timeutil.Wait(ctx, clock, interval) != nil {
			return
		}
	}
}
