package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const limiterTTL = 5 * time.Minute

type cachedLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

func (c *cachedLimiter) idle(now time.Time) bool {
	return now.UnixNano()-c.lastSeen.Load() >= int64(limiterTTL)
}

// RateLimiter hands out one token bucket per client IP. A bucket survives as
// long as its client keeps sending requests; once idle for limiterTTL it is
// replaced on next use or dropped by Sweep.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	limiters sync.Map // ip -> *cachedLimiter
	logger   *slog.Logger
	now      func() time.Time
}

// NewRateLimiter allows rps requests per second per IP with the given burst.
func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:    rate.Limit(rps),
		burst:  burst,
		logger: logger,
		now:    time.Now,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()
	for {
		v, ok := rl.limiters.Load(key)
		if ok {
			cached := v.(*cachedLimiter)
			if !cached.idle(now) {
				cached.lastSeen.Store(now.UnixNano())
				return cached.limiter
			}
		}

		fresh := &cachedLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		fresh.lastSeen.Store(now.UnixNano())
		if !ok {
			if _, loaded := rl.limiters.LoadOrStore(key, fresh); !loaded {
				return fresh.limiter
			}
		} else if rl.limiters.CompareAndSwap(key, v, fresh) {
			return fresh.limiter
		}
		// another request replaced the entry first; use theirs
	}
}

// Sweep drops buckets idle for at least limiterTTL. The server calls it
// periodically.
func (rl *RateLimiter) Sweep() {
	now := rl.now()
	rl.limiters.Range(func(k, v any) bool {
		if v.(*cachedLimiter).idle(now) {
			rl.limiters.CompareAndDelete(k, v)
		}
		return true
	})
}

// Middleware answers 429 once a client IP exhausts its bucket.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.limiterFor(ip).Allow() {
			rl.logger.Warn("rate limit exceeded", slog.String("remote_ip", ip), slog.String("path", r.URL.Path))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"Too many requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. RealIP upstream has already
// applied X-Forwarded-For.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
