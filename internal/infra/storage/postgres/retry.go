package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/courseforge/quizgen/internal/pipeline/metrics"
)

// RetryConfig defines transaction retry behavior.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryConfig provides sensible defaults: short linear backoff over a
// bounded attempt count.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 3,
	Delay:       100 * time.Millisecond,
}

// Retryable SQLSTATE codes: serialization_failure, deadlock_detected,
// lock_not_available.
var retryableCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
}

// IsRetryable reports whether a transaction failure is worth retrying.
// Anything not recognized propagates immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableCodes[pgErr.Code]
	}

	// Driver-agnostic fallback on message signatures.
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "deadlock detected") ||
		strings.Contains(s, "could not serialize access") ||
		strings.Contains(s, "lock timeout")
}

// withTxRetry runs fn, retrying recognized transient transaction failures
// with linear backoff. Any other failure propagates on the first attempt.
func withTxRetry(ctx context.Context, cfg RetryConfig, op string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}

		lastErr = err
		metrics.DBTxRetries.WithLabelValues(op).Inc()

		if attempt == cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}

	return lastErr
}
