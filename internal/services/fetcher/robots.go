package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
)

// robotsCacheTTL is how long a fetched robots.txt is trusted before re-fetch.
const robotsCacheTTL = 24 * time.Hour

// robotsRules is the parsed subset of a robots.txt we enforce: the Disallow
// prefixes for the wildcard agent group plus any group naming our agent.
type robotsRules struct {
	disallow  []string
	allow     []string
	fetchedAt time.Time
}

// RobotsCache fetches and caches robots.txt per host. API endpoints published
// by ATS vendors never consult this cache (see Service.Fetch).
type RobotsCache struct {
	client    *http.Client
	agent     string
	rules     map[string]*robotsRules
	mu        sync.Mutex
	logger    arbor.ILogger
}

// NewRobotsCache creates a robots cache with the given HTTP client and the
// user-agent token matched against robots.txt groups.
func NewRobotsCache(client *http.Client, agent string, logger arbor.ILogger) *RobotsCache {
	return &RobotsCache{
		client: client,
		agent:  agent,
		rules:  make(map[string]*robotsRules),
		logger: logger,
	}
}

// Allowed reports whether rawURL may be fetched under the host's robots.txt.
// A missing or unfetchable robots.txt allows everything.
func (rc *RobotsCache) Allowed(ctx context.Context, rawURL string) bool {
	host := common.RegistrableHost(rawURL)
	if host == "" {
		return true
	}

	rules := rc.rulesFor(ctx, host, rawURL)
	if rules == nil {
		return true
	}

	path := pathOf(rawURL)

	// Allow directives win over Disallow when both prefix-match (longest
	// match semantics simplified to allow-wins, matching major crawlers'
	// behavior for our rule shapes)
	for _, prefix := range rules.allow {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, prefix := range rules.disallow {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// rulesFor returns cached rules for host, fetching robots.txt when the cache
// entry is absent or older than the TTL.
func (rc *RobotsCache) rulesFor(ctx context.Context, host, sampleURL string) *robotsRules {
	rc.mu.Lock()
	cached, ok := rc.rules[host]
	rc.mu.Unlock()

	if ok && time.Since(cached.fetchedAt) < robotsCacheTTL {
		return cached
	}

	scheme, authority := "https", host
	if u, err := url.Parse(sampleURL); err == nil && u.Host != "" {
		authority = u.Host // keeps a non-default port
	}
	if strings.HasPrefix(sampleURL, "http://") {
		scheme = "http"
	}
	robotsURL := scheme + "://" + authority + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", rc.agent)

	resp, err := rc.client.Do(req)
	if err != nil {
		rc.logger.Debug().Err(err).Str("host", host).Msg("robots.txt unreachable, allowing")
		return rc.store(host, &robotsRules{fetchedAt: time.Now()})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// 404 and friends mean no restrictions
		return rc.store(host, &robotsRules{fetchedAt: time.Now()})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return rc.store(host, &robotsRules{fetchedAt: time.Now()})
	}

	rules := parseRobots(string(body), rc.agent)
	rules.fetchedAt = time.Now()
	return rc.store(host, rules)
}

func (rc *RobotsCache) store(host string, rules *robotsRules) *robotsRules {
	rc.mu.Lock()
	rc.rules[host] = rules
	rc.mu.Unlock()
	return rules
}

// parseRobots extracts Allow/Disallow prefixes from the groups applying to
// agent ("*" and any group whose token is contained in agent, case-insensitive).
func parseRobots(content, agent string) *robotsRules {
	rules := &robotsRules{}
	agentLower := strings.ToLower(agent)

	applies := false
	sawAnyAgent := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			token := strings.ToLower(value)
			if sawAnyAgent && applies && token != "*" && !strings.Contains(agentLower, token) {
				// leaving an applicable group only when a new non-matching
				// group begins after directives were collected
				applies = false
			}
			if token == "*" || strings.Contains(agentLower, token) {
				applies = true
			}
			sawAnyAgent = true
		case "disallow":
			if applies {
				rules.disallow = append(rules.disallow, value)
			}
		case "allow":
			if applies {
				rules.allow = append(rules.allow, value)
			}
		}
	}
	return rules
}

// pathOf extracts the path component of a URL, defaulting to "/"
func pathOf(rawURL string) string {
	rest := rawURL
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexAny(rest, "/"); idx >= 0 {
		return rest[idx:]
	}
	return "/"
}
