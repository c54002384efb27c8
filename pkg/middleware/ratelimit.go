package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"bizhub-backend/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// KeyFunc extracts the rate limiting key from a request.
type KeyFunc func(*http.Request) string

// Skipper reports whether a request bypasses the limiter.
type Skipper func(*http.Request) bool

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	extractKey KeyFunc
	skipper    Skipper
	limit      rate.Limit
	burst      int
	logger     *zap.Logger

	mu       sync.Mutex
	limiters map[string]*visitor

	cleanupEvery time.Duration
	idleAfter    time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	done         chan struct{}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiterOption func(*RateLimiter)

func WithSkipper(skipper Skipper) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.skipper = skipper
	}
}

// WithCleanup sets how often idle buckets are dropped and after how long.
func WithCleanup(every, idleAfter time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.cleanupEvery = every
		rl.idleAfter = idleAfter
	}
}

// ClientIPKeyFunc keys on the address the nearest proxy saw: the right-most
// X-Forwarded-For hop, else the socket peer. Clients can prepend hops but
// not replace the last one, so the limiter must run before
// middleware.RealIP rewrites RemoteAddr.
func ClientIPKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.LastIndexByte(xff, ','); i >= 0 {
			xff = xff[i+1:]
		}
		if hop := strings.TrimSpace(xff); hop != "" {
			return hop
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// SkipHealthChecks exempts the health and heartbeat endpoints.
func SkipHealthChecks(r *http.Request) bool {
	switch r.URL.Path {
	case "/", "/healthz", "/ping":
		return r.Method == http.MethodGet || r.Method == http.MethodHead
	}
	return false
}

// NewRateLimiter starts a limiter with its cleanup goroutine; call Stop
// to end it.
func NewRateLimiter(logger *zap.Logger, keyFunc KeyFunc, limit rate.Limit, burst int, options ...RateLimiterOption) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	rl := &RateLimiter{
		extractKey:   keyFunc,
		skipper:      func(*http.Request) bool { return false },
		limit:        limit,
		burst:        burst,
		logger:       logger,
		limiters:     make(map[string]*visitor),
		cleanupEvery: time.Minute,
		idleAfter:    3 * time.Minute,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range options {
		opt(rl)
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	defer close(rl.done)
	ticker := time.NewTicker(rl.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.limiters {
				if now.Sub(v.lastSeen) > rl.idleAfter {
					delete(rl.limiters, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop ends the cleanup goroutine and waits for it.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	<-rl.done
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.limiters[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Size is the number of tracked keys.
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Limit is the middleware.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.extractKey(r)
		limiter := rl.getLimiter(key)
		if !limiter.Allow() {
			retryAfter := 1
			if rl.limit > 0 {
				retryAfter = int(time.Duration(float64(time.Second)/float64(rl.limit)).Seconds() + 0.999)
				if retryAfter < 1 {
					retryAfter = 1
				}
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			utils.WriteTooManyRequestsResponse(w, "Rate limit exceeded")
			rl.logger.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			return
		}

		next.ServeHTTP(w, r)
	})
}
