package fetcher

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy defines retry behavior with exponential backoff.
// Only transport errors, 5xx responses, and 429 are retryable; any other 4xx
// is immediately fatal for the URL.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// RetryAfterCap bounds how long a 429 Retry-After header is honored
	// before the URL is given up on.
	RetryAfterCap time.Duration
}

// NewRetryPolicy creates a default retry policy
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		RetryAfterCap:     120 * time.Second,
	}
}

// ShouldRetry checks if an attempt should be retried based on attempt count,
// status code, and error type
func (p *RetryPolicy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt >= p.MaxAttempts {
		return false
	}

	if statusCode > 0 {
		if statusCode == http.StatusTooManyRequests {
			return true
		}
		if statusCode >= 500 {
			return true
		}
		if statusCode >= 400 {
			return false // client errors (except 429) are not retryable
		}
	}

	if err != nil {
		return isRetryableError(err)
	}

	return false
}

// CalculateBackoff calculates the backoff duration with exponential growth
// and full jitter: the wait is uniform in [0, base * multiplier^attempt].
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= p.BackoffMultiplier
	}
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	// Full jitter
	backoff = rand.Float64() * backoff

	return time.Duration(backoff)
}

// RetryAfterDelay parses a Retry-After header (seconds form) from a 429
// response. Returns (0, false) when absent or unparseable, and also when the
// delay exceeds RetryAfterCap.
func (p *RetryPolicy) RetryAfterDelay(headers http.Header) (time.Duration, bool) {
	if headers == nil {
		return 0, false
	}
	value := headers.Get("Retry-After")
	if value == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0, false
	}
	delay := time.Duration(secs) * time.Second
	if delay > p.RetryAfterCap {
		return 0, false // upstream asks for longer than we are willing to wait
	}
	return delay, true
}

// attemptResult is what one acquisition attempt reports back to the retry loop
type attemptResult struct {
	statusCode int
	headers    http.Header
}

// ExecuteWithRetry wraps an acquisition function with the retry loop. The
// function reports its status code and headers so 429 Retry-After can be
// honored.
func (p *RetryPolicy) ExecuteWithRetry(ctx context.Context, logger arbor.ILogger, fn func() (attemptResult, error)) (attemptResult, error) {
	var lastErr error
	var last attemptResult

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		last, lastErr = fn()

		if lastErr == nil && !retryableStatus(last.statusCode) {
			return last, nil
		}

		if Fatal(lastErr) || !p.ShouldRetry(attempt, last.statusCode, lastErr) {
			if lastErr != nil {
				logger.Debug().
					Int("attempt", attempt+1).
					Int("status_code", last.statusCode).
					Err(lastErr).
					Msg("Non-retryable error, failing immediately")
			}
			return last, lastErr
		}

		if attempt < p.MaxAttempts-1 {
			backoff := p.CalculateBackoff(attempt)
			if last.statusCode == http.StatusTooManyRequests {
				if delay, ok := p.RetryAfterDelay(last.headers); ok {
					backoff = delay
				} else if secs, err := strconv.Atoi(last.headers.Get("Retry-After")); err == nil && time.Duration(secs)*time.Second > p.RetryAfterCap {
					logger.Debug().
						Int("attempt", attempt+1).
						Int("retry_after_seconds", secs).
						Msg("Retry-After exceeds cap, giving up")
					return last, lastErr
				}
			}
			logger.Debug().
				Int("attempt", attempt+1).
				Int("status_code", last.statusCode).
				Err(lastErr).
				Dur("backoff", backoff).
				Msg("Retrying after backoff")

			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(backoff):
				// continue to next attempt
			}
		}
	}

	logger.Warn().
		Int("max_attempts", p.MaxAttempts).
		Int("status_code", last.statusCode).
		Err(lastErr).
		Msg("All retry attempts exhausted")

	return last, lastErr
}

// retryableStatus checks if a status code should be retried
func retryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// isRetryableError checks if an error is retryable (timeouts, connection
// errors, context deadline exceeded)
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return false
}
