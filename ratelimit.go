package authkit

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter gates expensive or abusable operations by key, typically
// "clientIP:email".
type RateLimiter interface {
	Allow(key string) bool
}

// KeyedLimiter is a token-bucket limiter per key. Buckets are created on
// first use and kept for the life of the process; auth keyspaces are small
// enough that no eviction is needed.
type KeyedLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter

	limit rate.Limit
	burst int
}

// NewKeyedLimiter allows `perMinute` events per key per minute with a burst
// of the same size.
func NewKeyedLimiter(perMinute int) *KeyedLimiter {
	if perMinute <= 0 {
		perMinute = 3
	}
	return &KeyedLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
	}
}

func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow()
}
