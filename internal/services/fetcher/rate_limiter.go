package fetcher

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ternarybob/hunt/internal/common"
)

// atsVendorHosts are the hosts serving vendor-published ATS APIs and boards.
// They receive the more permissive ATS-tier token bucket.
var atsVendorHosts = map[string]bool{
	"boards.greenhouse.io":     true,
	"boards-api.greenhouse.io": true,
	"jobs.lever.co":            true,
	"api.lever.co":             true,
	"jobs.ashbyhq.com":         true,
	"api.ashbyhq.com":          true,
}

// RateLimiter enforces per-host token buckets. ATS vendor hosts get the ATS
// tier; everything else gets the conservative host tier; explicit per-host
// overrides win over both.
type RateLimiter struct {
	limiters  map[string]*rate.Limiter
	mu        sync.Mutex
	hostRate  rate.Limit
	hostBurst int
	atsRate   rate.Limit
	atsBurst  int
	overrides map[string]bucketSpec
}

type bucketSpec struct {
	r     rate.Limit
	burst int
}

// NewRateLimiter builds a limiter from fetcher configuration. Host overrides
// are "rate,burst" strings keyed by host (data, not code).
func NewRateLimiter(cfg *common.FetcherConfig) *RateLimiter {
	rl := &RateLimiter{
		limiters:  make(map[string]*rate.Limiter),
		hostRate:  rate.Limit(cfg.HostRatePerSec),
		hostBurst: cfg.HostBurst,
		atsRate:   rate.Limit(cfg.ATSRatePerSec),
		atsBurst:  cfg.ATSBurst,
		overrides: make(map[string]bucketSpec),
	}
	for host, spec := range cfg.HostOverrides {
		parts := strings.SplitN(spec, ",", 2)
		if len(parts) != 2 {
			continue
		}
		r, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		b, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil || r <= 0 || b <= 0 {
			continue
		}
		rl.overrides[strings.ToLower(host)] = bucketSpec{r: rate.Limit(r), burst: b}
	}
	return rl
}

// Wait blocks until the host's bucket grants a token, or the context is
// cancelled.
func (rl *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	host := common.RegistrableHost(rawURL)
	if host == "" {
		return nil // no host, no rate limiting
	}
	return rl.limiterFor(host).Wait(ctx)
}

// limiterFor returns (creating on first use) the host's bucket.
func (rl *RateLimiter) limiterFor(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[host]; ok {
		return l
	}

	spec := bucketSpec{r: rl.hostRate, burst: rl.hostBurst}
	if isWorkdayHost(host) || atsVendorHosts[host] {
		spec = bucketSpec{r: rl.atsRate, burst: rl.atsBurst}
	}
	if override, ok := rl.overrides[host]; ok {
		spec = override
	}

	l := rate.NewLimiter(spec.r, spec.burst)
	rl.limiters[host] = l
	return l
}

// SetHostLimit installs or replaces an explicit per-host bucket at runtime.
func (rl *RateLimiter) SetHostLimit(host string, perSec float64, burst int) {
	host = strings.ToLower(host)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.overrides[host] = bucketSpec{r: rate.Limit(perSec), burst: burst}
	rl.limiters[host] = rate.NewLimiter(rate.Limit(perSec), burst)
}

// isWorkdayHost matches <org>.myworkdayjobs.com and the wd*.myworkday* API hosts
func isWorkdayHost(host string) bool {
	return strings.HasSuffix(host, ".myworkdayjobs.com") || strings.HasSuffix(host, ".myworkdaysite.com")
}
