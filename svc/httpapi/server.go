package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/creditkit/pkg/clientip"
	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/pkg/ratelimit"
	"github.com/dmitrymomot/creditkit/pkg/requestid"
	"github.com/dmitrymomot/creditkit/svc/ledger"
	"github.com/dmitrymomot/creditkit/svc/lifecycle"
	"github.com/dmitrymomot/creditkit/svc/sweeper"
)

// Sweeper runs a maintenance pass; *sweeper.Sweeper implements it.
type Sweeper interface {
	Run(ctx context.Context, now time.Time) (sweeper.Report, error)
}

// Check is a readiness probe, such as pg.Healthcheck or redis.Healthcheck.
type Check func(ctx context.Context) error

type Server struct {
	cfg       Config
	lifecycle *lifecycle.Service
	ledger    *ledger.Service
	sweeper   Sweeper
	gatherer  prometheus.Gatherer
	checks    map[string]Check
	resolve   Resolver
	consumeRL ratelimit.Limiter
	signupRL  ratelimit.Limiter
	now       func() time.Time
	log       *slog.Logger
	mux       chi.Router
}

type Option func(*Server)

func WithResolver(r Resolver) Option {
	return func(s *Server) {
		if r != nil {
			s.resolve = r
		}
	}
}

// WithSweeper enables reset_all on POST /credits/reset.
func WithSweeper(sw Sweeper) Option {
	return func(s *Server) { s.sweeper = sw }
}

// WithGatherer serves g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithCheck adds a named readiness probe to /healthz.
func WithCheck(name string, c Check) Option {
	return func(s *Server) { s.checks[name] = c }
}

// WithConsumeLimiter limits POST /credits/consume per account.
func WithConsumeLimiter(l ratelimit.Limiter) Option {
	return func(s *Server) { s.consumeRL = l }
}

// WithSignupLimiter limits POST /accounts per client address.
func WithSignupLimiter(l ratelimit.Limiter) Option {
	return func(s *Server) { s.signupRL = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New builds the router. It panics when lifecycle or ledger is nil.
func New(cfg Config, lc *lifecycle.Service, led *ledger.Service, opts ...Option) *Server {
	if lc == nil || led == nil {
		panic("httpapi: lifecycle and ledger services are required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	s := &Server{
		cfg:       cfg,
		lifecycle: lc,
		ledger:    led,
		gatherer:  prometheus.DefaultGatherer,
		checks:    make(map[string]Check),
		resolve:   HeaderResolver,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("httpapi"))
	s.mux = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	mux := chi.NewRouter()
	mux.Use(requestid.Middleware)
	mux.Use(clientip.Middleware(s.cfg.IPHeaders...))
	mux.Use(chimw.Recoverer)
	mux.Use(s.accessLog)

	mux.Get("/healthz", s.handleHealthz)
	mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.Get("/plans", s.handleListPlans)
	mux.With(s.limit(s.signupRL, func(r *http.Request) string {
		return clientip.FromContext(r.Context())
	})).Post("/accounts", s.handleOpenAccount)
	mux.Post("/credits/reset", s.handleResetCredits)

	mux.Group(func(r chi.Router) {
		r.Use(s.requireAccount)

		r.Route("/subscription", func(r chi.Router) {
			r.Get("/", s.handleGetSubscription)
			r.Post("/", s.handleSubscribe)
			r.Get("/events", s.handleListEvents)
			r.Post("/cancel", s.handleCancel)
			r.Post("/reactivate", s.handleReactivate)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Get("/retention-eligibility", s.handleRetentionEligibility)
			r.Post("/apply-retention-discount", s.handleApplyRetentionDiscount)
			r.Post("/preview-change", s.handlePreviewChange)
			r.Post("/change-plan", s.handleChangePlan)
		})

		r.Route("/credits", func(r chi.Router) {
			r.Get("/balance", s.handleBalance)
			r.Get("/history", s.handleHistory)
			r.Get("/analytics", s.handleAnalytics)
			r.With(s.limit(s.consumeRL, func(r *http.Request) string {
				id, _ := AccountID(r.Context())
				return id.String()
			})).Post("/consume", s.handleConsume)
		})
	})
	return mux
}

func (s *Server) limit(l ratelimit.Limiter, key ratelimit.KeyFunc) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return ratelimit.Middleware(l, key,
		ratelimit.WithLogger(s.log),
		ratelimit.WithOnLimitReached(func(w http.ResponseWriter, _ *http.Request, _ *ratelimit.Result) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, please retry later"})
		}),
	)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.DebugContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			logger.Duration(time.Since(start)),
		)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.log.WarnContext(ctx, "readiness check failed", slog.String("check", name), logger.Error(err))
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
