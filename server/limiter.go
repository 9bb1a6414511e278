package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// One contribution per member per round is the protocol ceiling; the limiter
// just keeps a misbehaving client from hammering the admission filter.
const (
	contributeRate  = rate.Limit(2)
	contributeBurst = 10
)

// limiterRegistry keeps one token bucket per contributing authority. The map
// is bounded in practice by the member set.
type limiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLimiterRegistry() *limiterRegistry {
	return &limiterRegistry{limiters: make(map[string]*rate.Limiter)}
}

func (l *limiterRegistry) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(contributeRate, contributeBurst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
