package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestRateLimiter(t *testing.T) {
	tests := []struct {
		name         string
		numRequests  int
		limit        rate.Limit
		burst        int
		sleep        time.Duration
		expectStatus int
	}{
		{
			name:         "within burst",
			numRequests:  20,
			limit:        rate.Every(time.Millisecond),
			burst:        20,
			expectStatus: http.StatusOK,
		},
		{
			name:         "burst exhausted",
			numRequests:  15,
			limit:        rate.Every(time.Hour),
			burst:        10,
			expectStatus: http.StatusTooManyRequests,
		},
		{
			name:         "tokens refill between requests",
			numRequests:  10,
			limit:        rate.Every(time.Millisecond),
			burst:        1,
			sleep:        2 * time.Millisecond,
			expectStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rl := NewRateLimiter(zap.NewNop(), ClientIPKeyFunc, tc.limit, tc.burst)
			defer rl.Stop()

			handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			var last *httptest.ResponseRecorder
			for i := 0; i < tc.numRequests; i++ {
				req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
				req.RemoteAddr = "192.168.1.1:4242"
				last = httptest.NewRecorder()
				handler.ServeHTTP(last, req)
				time.Sleep(tc.sleep)
			}
			assert.Equal(t, tc.expectStatus, last.Code)
			if tc.expectStatus == http.StatusTooManyRequests {
				assert.NotEmpty(t, last.Header().Get("Retry-After"))
			}
		})
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(zap.NewNop(), ClientIPKeyFunc, rate.Every(time.Hour), 1)
	defer rl.Stop()
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "172.16.0.1, "+ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, ip)
	}
	assert.Equal(t, 2, rl.Size())
}

func TestRateLimiterSkipperAndCleanup(t *testing.T) {
	rl := NewRateLimiter(zap.NewNop(), ClientIPKeyFunc, rate.Every(time.Hour), 1,
		WithSkipper(func(r *http.Request) bool { return r.URL.Path == "/healthz" }),
		WithCleanup(5*time.Millisecond, time.Millisecond),
	)
	defer rl.Stop()
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 0, rl.Size())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api", nil))
	assert.Equal(t, 1, rl.Size())
	assert.Eventually(t, func() bool { return rl.Size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRateLimiterIgnoresSpoofedHops(t *testing.T) {
	rl := NewRateLimiter(zap.NewNop(), ClientIPKeyFunc, rate.Every(time.Hour), 1)
	defer rl.Stop()
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for _, forged := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.Header.Set("X-Forwarded-For", forged+", 203.0.113.7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, rl.Size())

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.RemoteAddr = "198.51.100.9:4411"
	assert.Equal(t, "198.51.100.9", ClientIPKeyFunc(req))
}

func TestSkipHealthChecks(t *testing.T) {
	assert.True(t, SkipHealthChecks(httptest.NewRequest(http.MethodGet, "/healthz", nil)))
	assert.True(t, SkipHealthChecks(httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.False(t, SkipHealthChecks(httptest.NewRequest(http.MethodPost, "/", nil)))
	assert.False(t, SkipHealthChecks(httptest.NewRequest(http.MethodGet, "/api/tasks", nil)))
}
