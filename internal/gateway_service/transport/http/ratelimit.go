package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL       = 3 * time.Minute
	limiterSweepInterval = time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter keeps one token bucket per client IP. Buckets idle for more
// than three minutes are evicted.
type RateLimiter struct {
	limiters sync.Map // ip -> *ipLimiter
	rps      rate.Limit
	burst    int
	now      func() time.Time
}

// NewRateLimiter returns nil when rps is not positive. The eviction loop
// stops when ctx is done.
func NewRateLimiter(ctx context.Context, rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	l := &RateLimiter{rps: rate.Limit(rps), burst: burst, now: time.Now}
	go l.sweep(ctx)
	return l
}

// Allow consumes a token for ip.
func (l *RateLimiter) Allow(ip string) bool {
	now := l.now()
	v, ok := l.limiters.Load(ip)
	if !ok {
		v, _ = l.limiters.LoadOrStore(ip, &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)})
	}
	entry := v.(*ipLimiter)
	entry.lastSeen.Store(now.UnixNano())
	return entry.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with reject.
func (l *RateLimiter) Middleware(reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-ctx.Done():
			return
		}
	}
}

func (l *RateLimiter) evictIdle() {
	cutoff := l.now().Add(-limiterIdleTTL).UnixNano()
	l.limiters.Range(func(key, value any) bool {
		if value.(*ipLimiter).lastSeen.Load() < cutoff {
			l.limiters.Delete(key)
		}
		return true
	})
}

// clientIP is the host part of RemoteAddr. Proxy headers only count when the
// router was built with TrustProxyHeaders, which installs chi's RealIP.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
