package fetcher

import "sync/atomic"

// userAgentPool hands out user-agent strings round-robin so successive
// requests from the same process vary their identity string.
type userAgentPool struct {
	agents []string
	next   atomic.Uint64
}

func newUserAgentPool(agents []string) *userAgentPool {
	if len(agents) == 0 {
		agents = []string{"HuntBot/1.0"}
	}
	return &userAgentPool{agents: agents}
}

// Next returns the next user agent in rotation
func (p *userAgentPool) Next() string {
	n := p.next.Add(1)
	return p.agents[int(n-1)%len(p.agents)]
}
