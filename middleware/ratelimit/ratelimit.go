// Package ratelimit throttles requests per client key with token buckets.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goliatone/go-router"
	"golang.org/x/time/rate"
)

// HeaderRetryAfter is set on every throttled response
const HeaderRetryAfter = "Retry-After"

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c router.Context) string

// Policy is a named rate applied to a group of routes.
type Policy struct {
	Name  string
	Rate  rate.Limit
	Burst int
}

// PerMinute builds a policy allowing n requests per minute with a burst of n.
func PerMinute(name string, n int) Policy {
	return Policy{Name: name, Rate: rate.Limit(float64(n) / 60.0), Burst: n}
}

type Config struct {
	// CleanupInterval controls how often idle buckets are evicted. Buckets
	// idle for twice the interval are dropped.
	CleanupInterval time.Duration
	KeyFunc         KeyFunc
	// ErrorHandler writes the throttled response. The error it receives is
	// always ErrLimitExceeded.
	ErrorHandler router.ErrorHandler
	// OnLimited is called whenever a request is rejected
	OnLimited func(policy string, key string)
	Clock     func() time.Time
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter keeps one token bucket per policy and key.
type Limiter struct {
	cfg Config

	mu      sync.RWMutex
	buckets map[string]*bucket

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Limiter and starts its cleanup loop. Call Stop to end it.
func New(config ...Config) *Limiter {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			return c.Status(http.StatusTooManyRequests).SendString(err.Error())
		}
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Middleware charges every request to the bucket of policy.
func (l *Limiter) Middleware(policy Policy) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			key := l.cfg.KeyFunc(c)
			if l.Allow(policy, key) {
				return next(c)
			}

			if l.cfg.OnLimited != nil {
				l.cfg.OnLimited(policy.Name, key)
			}

			c.SetHeader(HeaderRetryAfter, strconv.Itoa(RetryAfter(policy.Rate)))
			return l.cfg.ErrorHandler(c, ErrLimitExceeded)
		}
	}
}

// Allow reports whether key may spend one token of policy.
func (l *Limiter) Allow(policy Policy, key string) bool {
	return l.limiterFor(policy, key).AllowN(l.cfg.Clock(), 1)
}

// Len returns the number of live buckets
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

func (l *Limiter) limiterFor(policy Policy, key string) *rate.Limiter {
	id := policy.Name + "|" + key
	now := l.cfg.Clock()

	l.mu.RLock()
	b, ok := l.buckets[id]
	l.mu.RUnlock()

	if ok {
		l.mu.Lock()
		b.lastAccess = now
		l.mu.Unlock()
		return b.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[id]; ok {
		b.lastAccess = now
		return b.limiter
	}

	b = &bucket{
		limiter:    rate.NewLimiter(policy.Rate, policy.Burst),
		lastAccess: now,
	}
	l.buckets[id] = b
	return b.limiter
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// Cleanup drops buckets idle for more than twice the cleanup interval.
func (l *Limiter) Cleanup() int {
	ttl := l.cfg.CleanupInterval * 2
	now := l.cfg.Clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, b := range l.buckets {
		if now.Sub(b.lastAccess) > ttl {
			delete(l.buckets, id)
			removed++
		}
	}
	return removed
}

// RetryAfter is the number of whole seconds until one token refills.
func RetryAfter(r rate.Limit) int {
	if r <= 0 || r == rate.Inf {
		return 1
	}
	secs := int(math.Ceil(1.0 / float64(r)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// ClientIP keys requests by remote address
func ClientIP(c router.Context) string {
	return c.IP()
}
