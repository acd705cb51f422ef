package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/creditkit/pkg/logger"
)

// KeyFunc extracts the limiting key from a request. An empty key skips
// limiting for that request.
type KeyFunc func(*http.Request) string

type middlewareConfig struct {
	onLimit func(w http.ResponseWriter, r *http.Request, res *Result)
	log     *slog.Logger
	now     func() time.Time
}

type MiddlewareOption func(*middlewareConfig)

// WithOnLimitReached replaces the default plain-text 429 response.
func WithOnLimitReached(fn func(w http.ResponseWriter, r *http.Request, res *Result)) MiddlewareOption {
	return func(c *middlewareConfig) { c.onLimit = fn }
}

func WithLogger(log *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) { c.log = log }
}

// Middleware enforces limiter per key. Store errors let the request through.
func Middleware(limiter Limiter, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if limiter == nil || keyFunc == nil {
		panic("ratelimit: limiter and keyFunc are required")
	}
	cfg := &middlewareConfig{
		onLimit: func(w http.ResponseWriter, _ *http.Request, _ *Result) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		},
		log: slog.Default(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				cfg.log.WarnContext(r.Context(), "rate limiter unavailable", logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				secs := int(math.Ceil(res.RetryAfter(cfg.now()).Seconds()))
				h.Set("Retry-After", strconv.Itoa(max(1, secs)))
				cfg.onLimit(w, r, res)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
