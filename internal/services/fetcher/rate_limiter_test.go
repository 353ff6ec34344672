package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/hunt/internal/common"
)

func testFetcherConfig() *common.FetcherConfig {
	cfg := common.NewDefaultConfig().Fetcher
	return &cfg
}

func TestRateLimiter_BurstThenBlocks(t *testing.T) {
	cfg := testFetcherConfig()
	cfg.HostRatePerSec = 10
	cfg.HostBurst = 2
	rl := NewRateLimiter(cfg)

	ctx := context.Background()

	// Burst capacity admits the first two immediately
	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "https://acme.test/careers"))
	require.NoError(t, rl.Wait(ctx, "https://acme.test/careers"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	// Third token has to wait roughly one refill interval (100ms at 10/s)
	start = time.Now()
	require.NoError(t, rl.Wait(ctx, "https://acme.test/careers"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimiter_HostsAreIndependent(t *testing.T) {
	cfg := testFetcherConfig()
	cfg.HostRatePerSec = 1
	cfg.HostBurst = 1
	rl := NewRateLimiter(cfg)

	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx, "https://one.test/"))

	// A different host has its own fresh bucket
	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "https://two.test/"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimiter_ATSHostsGetPermissiveTier(t *testing.T) {
	cfg := testFetcherConfig()
	cfg.HostRatePerSec = 1
	cfg.HostBurst = 1
	cfg.ATSRatePerSec = 100
	cfg.ATSBurst = 10
	rl := NewRateLimiter(cfg)

	ctx := context.Background()

	// Five rapid requests against a vendor API complete inside burst capacity
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(ctx, "https://boards.greenhouse.io/v1/boards/acme/jobs"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiter_WorkdayHostsMatchATS(t *testing.T) {
	cfg := testFetcherConfig()
	cfg.ATSRatePerSec = 100
	cfg.ATSBurst = 10
	rl := NewRateLimiter(cfg)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(context.Background(), "https://acme.wd1.myworkdayjobs.com/wday/cxs/acme/External/jobs"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiter_OverridesWin(t *testing.T) {
	cfg := testFetcherConfig()
	cfg.HostOverrides = map[string]string{"slow.test": "1,1"}
	cfg.HostRatePerSec = 100
	cfg.HostBurst = 10
	rl := NewRateLimiter(cfg)

	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx, "https://slow.test/"))

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "https://slow.test/"))
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestRateLimiter_CancelledContext(t *testing.T) {
	cfg := testFetcherConfig()
	cfg.HostRatePerSec = 0.1
	cfg.HostBurst = 1
	rl := NewRateLimiter(cfg)

	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx, "https://slow.test/"))

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := rl.Wait(cancelled, "https://slow.test/")
	assert.Error(t, err)
}
