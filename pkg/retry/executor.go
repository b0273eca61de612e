package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/spawn-mcp/campaign-synth/pkg/errors"
)

// Strategy defines retry strategy interface
type Strategy interface {
	NextDelay(attempt int) time.Duration
	ShouldRetry(attempt int, err error) bool
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config defines retry configuration
type Config struct {
	// MaxAttempts counts every try, the first one included
	MaxAttempts int
	Strategy    Strategy
	OnRetry     func(attempt int, delay time.Duration, err error)
	Sleep       SleepFunc
}

// RateLimitBackoff retries only throttling failures. The wait before retry n
// (zero based) is 2^n units plus a jitter of 0.1 to 0.3 units.
type RateLimitBackoff struct {
	Unit       time.Duration
	MaxRetries int
	// Rand returns a value in [0,1); nil uses math/rand
	Rand func() float64
}

// NextDelay calculates the wait before the next try
func (b *RateLimitBackoff) NextDelay(attempt int) time.Duration {
	unit := float64(b.unit())
	r := rand.Float64
	if b.Rand != nil {
		r = b.Rand
	}
	jitter := (0.1 + 0.2*r()) * unit
	return time.Duration(math.Pow(2, float64(attempt))*unit + jitter)
}

// ShouldRetry is true only for rate-limit errors while retries remain
func (b *RateLimitBackoff) ShouldRetry(attempt int, err error) bool {
	return errors.IsRateLimit(err) && attempt < b.MaxRetries
}

func (b *RateLimitBackoff) unit() time.Duration {
	if b.Unit <= 0 {
		return time.Second
	}
	return b.Unit
}

// NewRateLimitConfig builds the config used around inference calls
func NewRateLimitConfig(unit time.Duration, maxRetries int) Config {
	return Config{
		MaxAttempts: maxRetries + 1,
		Strategy: &RateLimitBackoff{
			Unit:       unit,
			MaxRetries: maxRetries,
		},
	}
}

// DefaultConfig waits 1s, 2s, 4s (plus jitter) across three retries
var DefaultConfig = NewRateLimitConfig(time.Second, 3)

// ExecuteWithRetry executes operation with retry logic
func ExecuteWithRetry[T any](
	ctx context.Context,
	operation func() (T, error),
	config Config,
) (T, error) {
	sleep := config.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var result T
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		res, err := operation()
		if err == nil {
			return res, nil
		}
		result, lastErr = res, err

		if attempt == config.MaxAttempts-1 {
			// the error kind is retryable, only the budget ran out
			if config.Strategy.ShouldRetry(0, err) {
				break
			}
			return result, err
		}
		if !config.Strategy.ShouldRetry(attempt, err) {
			return result, err
		}

		delay := config.Strategy.NextDelay(attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt, delay, err)
		}

		if err := sleep(ctx, delay); err != nil {
			return result, fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return result, errors.Wrapf(lastErr, errors.ErrRetriesExhausted, "max retries (%d) exceeded", config.MaxAttempts-1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
