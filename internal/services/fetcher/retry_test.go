package fetcher

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/models"
)

func TestShouldRetry_StatusCodes(t *testing.T) {
	p := NewRetryPolicy()

	assert.True(t, p.ShouldRetry(0, 500, nil))
	assert.True(t, p.ShouldRetry(0, 503, nil))
	assert.True(t, p.ShouldRetry(0, 429, nil))
	assert.False(t, p.ShouldRetry(0, 404, nil))
	assert.False(t, p.ShouldRetry(0, 403, nil))
	assert.False(t, p.ShouldRetry(0, 200, nil))

	// Attempt budget exhausted
	assert.False(t, p.ShouldRetry(3, 500, nil))
}

func TestCalculateBackoff_FullJitterBounds(t *testing.T) {
	p := NewRetryPolicy()

	// Full jitter: each sample must land in [0, base * 2^attempt]
	for attempt := 0; attempt < 3; attempt++ {
		ceiling := p.InitialBackoff
		for i := 0; i < attempt; i++ {
			ceiling *= 2
		}
		for i := 0; i < 50; i++ {
			backoff := p.CalculateBackoff(attempt)
			assert.GreaterOrEqual(t, backoff, time.Duration(0))
			assert.LessOrEqual(t, backoff, ceiling)
		}
	}
}

func TestRetryAfterDelay(t *testing.T) {
	p := NewRetryPolicy()

	h := http.Header{}
	h.Set("Retry-After", "3")
	delay, ok := p.RetryAfterDelay(h)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, delay)

	// Beyond the cap the header is not honored
	h.Set("Retry-After", "600")
	_, ok = p.RetryAfterDelay(h)
	assert.False(t, ok)

	// Absent or junk headers
	_, ok = p.RetryAfterDelay(http.Header{})
	assert.False(t, ok)
	h.Set("Retry-After", "soon")
	_, ok = p.RetryAfterDelay(h)
	assert.False(t, ok)
}

func TestExecuteWithRetry_SucceedsAfterServerErrors(t *testing.T) {
	p := NewRetryPolicy()
	p.InitialBackoff = time.Millisecond
	logger := arbor.NewLogger()

	calls := 0
	result, err := p.ExecuteWithRetry(context.Background(), logger, func() (attemptResult, error) {
		calls++
		if calls < 3 {
			return attemptResult{statusCode: 503}, models.NewError(models.KindHTTPServerError, "boom")
		}
		return attemptResult{statusCode: 200}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 200, result.statusCode)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_FatalClientErrorNoRetry(t *testing.T) {
	p := NewRetryPolicy()
	logger := arbor.NewLogger()

	calls := 0
	_, err := p.ExecuteWithRetry(context.Background(), logger, func() (attemptResult, error) {
		calls++
		return attemptResult{statusCode: 404}, models.NewError(models.KindNotFound, "gone")
	})

	require.Error(t, err)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
	assert.Equal(t, 1, calls)
}

func TestExecuteWithRetry_ContextCancelDuringBackoff(t *testing.T) {
	p := NewRetryPolicy()
	p.InitialBackoff = time.Second
	logger := arbor.NewLogger()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.ExecuteWithRetry(ctx, logger, func() (attemptResult, error) {
		return attemptResult{statusCode: 500}, models.NewError(models.KindHTTPServerError, "boom")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
