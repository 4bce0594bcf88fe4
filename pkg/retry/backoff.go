package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/canopy-network/stakedrop/pkg/utils"
	"go.uber.org/zap"
)

// Config defines retry behavior
type Config struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	JitterEnabled bool
}

// DefaultConfig returns production-ready retry settings
func DefaultConfig() Config {
	return Config{
		MaxRetries:    10,
		InitialDelay:  2 * time.Second,
		MaxDelay:      60 * time.Second,
		Multiplier:    2.0,
		JitterEnabled: true,
	}
}

// ConfigFromEnv overrides DefaultConfig with RETRY_MAX_ATTEMPTS, RETRY_INITIAL_DELAY and RETRY_MAX_DELAY.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = utils.EnvInt("RETRY_MAX_ATTEMPTS", cfg.MaxRetries)
	cfg.InitialDelay = utils.EnvDuration("RETRY_INITIAL_DELAY", cfg.InitialDelay)
	cfg.MaxDelay = utils.EnvDuration("RETRY_MAX_DELAY", cfg.MaxDelay)
	return cfg
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. WithBackoff returns the wrapped error immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// WithBackoff runs fn until it succeeds, returns a Permanent error, the attempts run out or
// ctx is done. Delays grow by cfg.Multiplier up to cfg.MaxDelay.
func WithBackoff(ctx context.Context, cfg Config, logger *zap.Logger, operation string, fn func() error) error {
	attempts := max(cfg.MaxRetries, 1)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info("Operation succeeded after retries",
					zap.String("operation", operation),
					zap.Int("attempts", attempt))
			}
			return nil
		}
		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
		if attempt >= attempts {
			return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, err)
		}

		delay := Delay(cfg, attempt)
		logger.Warn("Operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", attempts),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// Delay is the wait after the given failed attempt (1-based), with +/-15% jitter when enabled.
func Delay(cfg Config, attempt int) time.Duration {
	delay := math.Min(float64(cfg.InitialDelay)*math.Pow(cfg.Multiplier, float64(attempt-1)), float64(cfg.MaxDelay))
	if cfg.JitterEnabled {
		delay *= 0.85 + 0.3*rand.Float64()
	}
	return time.Duration(delay)
}
