package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ConfabulousDev/lovelog/internal/clientip"
	"github.com/ConfabulousDev/lovelog/internal/logger"
)

// KeyFunc picks the bucket for a request. An empty key falls back to the
// client IP key.
type KeyFunc func(*http.Request) string

// Middleware rejects requests over the limit with 429 and a JSON error.
// Keys come from keyFunc, or from clientip.Middleware when keyFunc is nil.
func Middleware(limiter RateLimiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var key string
			if keyFunc != nil {
				key = keyFunc(r)
			}
			if key == "" {
				key = clientip.FromRequest(r).RateLimitKey
			}

			if !limiter.Allow(r.Context(), key) {
				logger.Ctx(r.Context()).Warn("rate limit exceeded",
					"client_ip", clientip.FromRequest(r).Primary,
					"path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(1))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Rate limit exceeded. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
