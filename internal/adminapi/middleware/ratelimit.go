package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/coro-sched/coro/internal/logger"
)

// tokenBucket is a simple requests-per-second limiter.
type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(rps int) *tokenBucket {
	if rps <= 0 {
		rps = 1000
	}
	return &tokenBucket{
		tokens:     float64(rps),
		maxTokens:  float64(rps),
		refillRate: float64(rps),
		lastRefill: time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// ClientRateLimit returns middleware enforcing a per-client requests per
// second limit on the admin API, keyed on X-Forwarded-For or RemoteAddr.
func ClientRateLimit(rps int) func(next http.Handler) http.Handler {
	var mu sync.RWMutex
	buckets := make(map[string]*tokenBucket)

	bucketFor := func(clientID string) *tokenBucket {
		mu.RLock()
		b, ok := buckets[clientID]
		mu.RUnlock()
		if ok {
			return b
		}

		mu.Lock()
		defer mu.Unlock()
		if b, ok = buckets[clientID]; ok {
			return b
		}
		b = newTokenBucket(rps)
		buckets[clientID] = b
		return b
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := r.Header.Get("X-Forwarded-For")
			if clientID == "" {
				clientID = r.RemoteAddr
			}

			if !bucketFor(clientID).allow() {
				logger.Warn().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("client", clientID).
					Msg("admin API rate limit exceeded")

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
