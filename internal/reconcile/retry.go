package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/doublev/bff-gateway/internal/backend"
	"github.com/doublev/bff-gateway/internal/config"
)

// RetryPolicy bounds admin API retries.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy returns the policy from config defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: config.DefaultReconcileAttempts,
		BaseBackoff: config.DefaultReconcileBackoff,
		MaxBackoff:  config.MaxReconcileBackoff,
	}
}

// backoff returns base * 2^attempt, capped at MaxBackoff.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if attempt >= 32 {
		return p.MaxBackoff
	}
	d := p.BaseBackoff << attempt
	if d <= 0 || (p.MaxBackoff > 0 && d > p.MaxBackoff) {
		return p.MaxBackoff
	}
	return d
}

// retryable reports whether err is worth another attempt: transport
// failures and 5xx replies only.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *backend.TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// withRetry runs fn until it succeeds, fails with a non-retryable error,
// or MaxAttempts is reached.
func (r *Reconciler) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := r.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) || attempt == attempts-1 {
			return err
		}
		wait := r.retry.backoff(attempt)
		log.Debug().
			Str("op", op).
			Err(err).
			Dur("wait", wait).
			Int("attempt", attempt+1).
			Int("max_attempts", attempts).
			Msg("admin call failed, retrying")
		if serr := r.sleep(ctx, wait); serr != nil {
			return err
		}
	}
	return err
}
