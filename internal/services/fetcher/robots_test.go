package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestParseRobots(t *testing.T) {
	content := `
# comment
User-agent: *
Disallow: /admin
Disallow: /private/
Allow: /private/jobs

User-agent: OtherBot
Disallow: /
`
	rules := parseRobots(content, "HuntBot/1.0")

	assert.Contains(t, rules.disallow, "/admin")
	assert.Contains(t, rules.disallow, "/private/")
	assert.Contains(t, rules.allow, "/private/jobs")
	// OtherBot's blanket disallow must not leak into our group
	assert.NotContains(t, rules.disallow, "/")
}

func TestParseRobots_NamedAgentGroup(t *testing.T) {
	content := `
User-agent: huntbot
Disallow: /internal
`
	rules := parseRobots(content, "HuntBot/1.0")
	assert.Contains(t, rules.disallow, "/internal")
}

func TestRobotsCache_AllowedAndDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /blocked\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rc := NewRobotsCache(server.Client(), "HuntBot/1.0", arbor.NewLogger())

	assert.True(t, rc.Allowed(context.Background(), server.URL+"/careers"))
	assert.False(t, rc.Allowed(context.Background(), server.URL+"/blocked/page"))
}

func TestRobotsCache_FetchedOncePerHost(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits.Add(1)
			w.Write([]byte("User-agent: *\nDisallow:\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rc := NewRobotsCache(server.Client(), "HuntBot/1.0", arbor.NewLogger())

	for i := 0; i < 5; i++ {
		assert.True(t, rc.Allowed(context.Background(), server.URL+"/jobs"))
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestRobotsCache_MissingRobotsAllowsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	rc := NewRobotsCache(server.Client(), "HuntBot/1.0", arbor.NewLogger())
	assert.True(t, rc.Allowed(context.Background(), server.URL+"/anything"))
}
