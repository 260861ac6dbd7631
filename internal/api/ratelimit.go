package api

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	domainerrors "github.com/fitcoach/fitcoach-server/internal/errors"
	"github.com/fitcoach/fitcoach-server/internal/ratelimit"
)

// RateLimitMiddleware limits requests per client IP and answers 429 with
// Retry-After once a client runs out of tokens. A nil limiter disables it.
// It expects middleware.RealIP to have run first.
func RateLimitMiddleware(limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			if !limiter.Allow(key) {
				retry := limiter.RetryAfter(key)
				logger.WarnContext(r.Context(), "rate limit exceeded",
					"ip", key,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeErrorEnvelope(w, http.StatusTooManyRequests,
					string(domainerrors.CodeRateLimited), "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr, which RealIP has already
// replaced with the forwarded client address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
