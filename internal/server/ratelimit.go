package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// RemoteLimiter bounds per-remote-address request rates on the HTTP
// surface with token buckets. This protects the serve loop itself; the
// per-principal sliding-window budget lives in internal/ratelimit and is
// shared across processes.
type RemoteLimiter struct {
	mu       sync.Mutex
	remotes  map[string]*rate.Limiter
	perPeer  rate.Limit
	burst    int
	disabled bool
}

// NewRemoteLimiter creates a limiter allowing requestsPerMin per remote.
// requestsPerMin <= 0 disables limiting.
func NewRemoteLimiter(requestsPerMin int) *RemoteLimiter {
	if requestsPerMin <= 0 {
		return &RemoteLimiter{disabled: true}
	}
	return &RemoteLimiter{
		remotes: make(map[string]*rate.Limiter),
		perPeer: rate.Limit(float64(requestsPerMin) / 60.0),
		burst:   requestsPerMin,
	}
}

// Allow reports whether a request from the given remote is within budget.
func (l *RemoteLimiter) Allow(remote string) bool {
	if l.disabled {
		return true
	}
	l.mu.Lock()
	limiter, ok := l.remotes[remote]
	if !ok {
		limiter = rate.NewLimiter(l.perPeer, l.burst)
		l.remotes[remote] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
