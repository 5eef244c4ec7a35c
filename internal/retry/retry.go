// Package retry runs an operation again with exponential backoff while its
// error is classed as transient.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/banshee-data/pose.report/internal/timeutil"
)

// Config holds the backoff schedule.
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
	Clock           timeutil.Clock
}

// DefaultConfig suits short local contention such as a busy SQLite file.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       20 * time.Millisecond,
		MaxDelay:        500 * time.Millisecond,
		BackoffMultiple: 2.0,
	}
}

// Delay returns the wait before retry number attempt, counting from zero.
func (c Config) Delay(attempt int) time.Duration {
	mult := c.BackoffMultiple
	if mult < 1 {
		mult = 1
	}
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(mult, float64(attempt)))
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Do calls fn until it succeeds, returns an error retryable rejects, or the
// retries run out. The last error is returned. A nil retryable retries
// every error.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, fn func(attempt int) error) error {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if werr := timeutil.Wait(ctx, clock, cfg.Delay(attempt-1)); werr != nil {
				return werr
			}
		}
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}
	return err
}
