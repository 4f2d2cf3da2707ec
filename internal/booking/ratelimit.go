package booking

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiterTTL is how long an idle per-contact limiter is kept before the
// next sweep removes it.
const rateLimiterTTL = 10 * time.Minute

// ContactLimiter keeps one token-bucket limiter per caller identity. It is
// process-local and lost on restart: an optimization, not a correctness
// mechanism.
type ContactLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	limiters  map[string]*contactEntry
	lastSweep time.Time
}

type contactEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewContactLimiter allows perMinute requests with the given burst per
// contact.
func NewContactLimiter(perMinute, burst int) *ContactLimiter {
	return &ContactLimiter{
		limit:     rate.Limit(float64(perMinute) / 60.0),
		burst:     burst,
		limiters:  make(map[string]*contactEntry),
		lastSweep: time.Now(),
	}
}

// Allow reports whether the contact may issue another booking attempt now.
func (l *ContactLimiter) Allow(contact string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > rateLimiterTTL {
		for key, e := range l.limiters {
			if now.Sub(e.lastSeen) > rateLimiterTTL {
				delete(l.limiters, key)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.limiters[contact]
	if !ok {
		e = &contactEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[contact] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}
