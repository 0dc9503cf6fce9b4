package api

import (
	"net"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/copytrade-ledger/internal/errors"
	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client key. Idle buckets expire
// so the set of tracked keys stays bounded.
type RateLimiter struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing requestsPerMinute per key
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 120
	}
	if burst <= 0 {
		burst = 10
	}
	return &RateLimiter{
		limiters: cache.New(10*time.Minute, 5*time.Minute),
		limit:    rate.Limit(float64(requestsPerMinute) / 60),
		burst:    burst,
	}
}

// getLimiter returns the limiter for key, creating it on first use
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	if cached, ok := rl.limiters.Get(key); ok {
		return cached.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	if err := rl.limiters.Add(key, limiter, cache.DefaultExpiration); err != nil {
		// another request created it first
		if cached, ok := rl.limiters.Get(key); ok {
			return cached.(*rate.Limiter)
		}
	}
	return limiter
}

// Allow reports whether a request for key may proceed, refreshing the
// bucket's expiry
func (rl *RateLimiter) Allow(key string) bool {
	limiter := rl.getLimiter(key)
	rl.limiters.Set(key, limiter, cache.DefaultExpiration)
	return limiter.Allow()
}

// clientKey limits per account on wallet routes and per client address
// elsewhere
func clientKey(r *http.Request) string {
	if account := mux.Vars(r)["account"]; account != "" {
		return "account:" + account
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(clientKey(r)) {
				retryAfter := int((time.Duration(float64(time.Second) / float64(rl.limit))).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				respondCategorized(w, r, apperrors.NewRateLimitError(retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
