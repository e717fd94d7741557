package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"aeriegateway/pkg/metrics"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per caller.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	limiters sync.Map // map[string]*rate.Limiter
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{rps: rate.Limit(rps), burst: burst}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rps, l.burst))
	return v.(*rate.Limiter)
}

// Middleware limits per authenticated username, falling back to the client IP
// when it runs in front of authentication.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ""
		if username, ok := UsernameFromContext(r.Context()); ok {
			key = "user:" + username
		} else {
			key = "ip:" + clientIP(r)
		}

		if !l.limiter(key).Allow() {
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{"message": "Rate limit exceeded", "success": false})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}
