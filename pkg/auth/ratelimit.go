package auth

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FailureLimiter tracks auth-failure budget per source IP (spec.md §4.4:
// "failed auth attempts are rate-limited per source address"). Idle
// entries are swept so long-running deployments don't leak limiters for
// addresses that never come back.
type FailureLimiter struct {
	perMinute float64

	mu       sync.Mutex
	limiters map[string]*entry
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewFailureLimiter builds a limiter allowing perMinute failed attempts
// per source IP, smoothed rather than bursty (burst=1, matching the
// teacher's queue pacing idiom of smooth pacing with no bursts).
func NewFailureLimiter(perMinute float64) *FailureLimiter {
	return &FailureLimiter{
		perMinute: perMinute,
		limiters:  make(map[string]*entry),
	}
}

// Allow reports whether a new failed-auth attempt from addr is within
// budget. An allowed call consumes one token; a rate-limited call
// consumes none. Only failed attempts should ever reach this check.
func (f *FailureLimiter) Allow(addr net.Addr) bool {
	key := hostOnly(addr)

	f.mu.Lock()
	e, ok := f.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(f.perMinute/60.0), 1)}
		f.limiters[key] = e
	}
	e.lastSeen = time.Now()
	f.mu.Unlock()

	return e.limiter.Allow()
}

// Sweep removes limiter entries idle longer than maxAge, intended to be
// called from the server's scheduler tick.
func (f *FailureLimiter) Sweep(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	f.mu.Lock()
	defer f.mu.Unlock()
	for k, e := range f.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(f.limiters, k)
		}
	}
}

func hostOnly(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
