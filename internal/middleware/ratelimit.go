package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/darkodi/whatsapp-redirect/internal/errors"
	"github.com/darkodi/whatsapp-redirect/internal/logger"
)

// RateLimiter is a per-IP token bucket. Buckets refill continuously at
// Rate tokens per Interval and hold at most Burst tokens.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	perSec   float64 // refill speed
	burst    float64
	idleTTL  time.Duration
	log      *logger.Logger
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiterConfig holds rate limiter settings
type RateLimiterConfig struct {
	Rate     int           // Requests per interval
	Burst    int           // Max burst size
	Interval time.Duration // Refill period for Rate tokens
	Cleanup  time.Duration // Idle buckets older than this are dropped
}

// DefaultRateLimiterConfig returns sensible defaults
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:     10,
		Burst:    20,
		Interval: time.Second,
		Cleanup:  5 * time.Minute,
	}
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine.
// Call Stop to release it.
func NewRateLimiter(cfg RateLimiterConfig, log *logger.Logger) *RateLimiter {
	def := DefaultRateLimiterConfig()
	if cfg.Rate <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Cleanup <= 0 {
		cfg.Cleanup = def.Cleanup
	}

	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		perSec:  float64(cfg.Rate) / cfg.Interval.Seconds(),
		burst:   float64(cfg.Burst),
		idleTTL: cfg.Cleanup,
		log:     log,
		now:     time.Now,
		done:    make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow takes a token for key
func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.take(key)
	return ok
}

// take spends a token for key, or reports how long until one is available
func (rl *RateLimiter) take(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.burst, lastSeen: now}
		rl.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastSeen); elapsed > 0 {
		b.tokens = math.Min(rl.burst, b.tokens+elapsed.Seconds()*rl.perSec)
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / rl.perSec * float64(time.Second))
	return false, wait
}

// cleanupLoop drops buckets that have been idle for idleTTL
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimiter) evictIdle() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	evicted := 0
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
			evicted++
		}
	}
	if rl.log != nil {
		rl.log.Debug("rate limiter cleanup", "evicted", evicted, "active_clients", len(rl.buckets))
	}
	return evicted
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Middleware limits requests per client IP
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			ok, wait := rl.take(ip)
			if !ok {
				if rl.log != nil {
					rl.log.FromContext(r.Context()).Warn("rate limit exceeded",
						"ip", ip,
						"path", r.URL.Path,
					)
				}

				// Retry-After is whole seconds, rounded up
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				apperrors.RateLimitExceeded().WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
