package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/creditkit/pkg/billing"
	"github.com/dmitrymomot/creditkit/pkg/clientip"
	"github.com/dmitrymomot/creditkit/pkg/config"
	"github.com/dmitrymomot/creditkit/pkg/email"
	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/pkg/pg"
	"github.com/dmitrymomot/creditkit/pkg/ratelimit"
	"github.com/dmitrymomot/creditkit/pkg/redis"
	"github.com/dmitrymomot/creditkit/pkg/requestid"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/account/memstore"
	"github.com/dmitrymomot/creditkit/svc/account/pgstore"
	"github.com/dmitrymomot/creditkit/svc/httpapi"
	"github.com/dmitrymomot/creditkit/svc/ledger"
	"github.com/dmitrymomot/creditkit/svc/lifecycle"
	"github.com/dmitrymomot/creditkit/svc/notify"
	"github.com/dmitrymomot/creditkit/svc/pause"
	"github.com/dmitrymomot/creditkit/svc/plans"
	"github.com/dmitrymomot/creditkit/svc/retention"
	"github.com/dmitrymomot/creditkit/svc/sweeper"
)

const (
	storagePostgres = "postgres"
	storageMemory   = "memory"
)

type appConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"SERVICE_NAME" envDefault:"creditd"`
	// Storage is "postgres" or "memory". Memory is for local runs only.
	Storage string `env:"STORAGE" envDefault:"postgres"`
	// Redis backs the sweeper lock and rate limit counters. Without it the
	// service must run as a single replica.
	Redis bool `env:"REDIS_ENABLED" envDefault:"true"`
	// MigrateOnStart applies migrations before serving.
	MigrateOnStart bool `env:"MIGRATE_ON_START" envDefault:"false"`
}

var errUnknownStorage = errors.New("STORAGE must be postgres or memory")

// app is the wired dependency graph shared by every command.
type app struct {
	cfg       appConfig
	log       *slog.Logger
	registry  *prometheus.Registry
	store     account.Store
	ledger    *ledger.Service
	lifecycle *lifecycle.Service
	sweeper   *sweeper.Sweeper
	sweepCfg  sweeper.Config
	redis     goredis.UniversalClient
	consumeRL ratelimit.Limiter
	signupRL  ratelimit.Limiter
	checks    map[string]httpapi.Check
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newLogger(cfg appConfig) *slog.Logger {
	// stdout carries command output such as the sweep report.
	log := logger.New(
		logger.WithOutput(os.Stderr),
		logger.WithEnvironment(cfg.Env, cfg.Service),
		logger.WithContextExtractors(requestid.LoggerExtractor(), clientip.LoggerExtractor()),
	)
	logger.SetAsDefault(log)
	return log
}

func newApp(ctx context.Context) (_ *app, err error) {
	cfg, err := config.Load[appConfig]()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		log:      newLogger(cfg),
		registry: prometheus.NewRegistry(),
		checks:   make(map[string]httpapi.Check),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	catalog, err := plans.FromConfig(ctx, config.MustLoad[plans.Config]())
	if err != nil {
		return nil, err
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if err := a.openRedis(ctx); err != nil {
		return nil, err
	}
	if err := a.buildLimiters(); err != nil {
		return nil, err
	}

	provider, err := a.billingProvider(catalog)
	if err != nil {
		return nil, err
	}

	sender, err := email.New(config.MustLoad[email.Config]())
	if err != nil {
		return nil, err
	}
	mailer := notify.NewMailer(sender, catalog, config.MustLoad[notify.Config](), notify.WithLogger(a.log))

	a.ledger = ledger.NewService(a.store,
		ledger.WithLogger(a.log),
		ledger.WithMetrics(ledger.NewMetrics(a.registry)),
	)
	a.lifecycle = lifecycle.New(lifecycle.Deps{
		Store:     a.store,
		Ledger:    a.ledger,
		Plans:     catalog,
		Provider:  provider,
		Pauses:    pause.NewService(provider, config.MustLoad[pause.Config](), pause.WithLogger(a.log)),
		Retention: retention.NewService(provider, config.MustLoad[retention.Config](), retention.WithLogger(a.log)),
	}, lifecycle.WithNotifier(mailer), lifecycle.WithLogger(a.log))

	if err := a.buildSweeper(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Storage {
	case storageMemory:
		a.log.WarnContext(ctx, "using in-memory storage, data is lost on exit")
		a.store = memstore.New()
		return nil
	case storagePostgres:
		pgCfg, err := config.Load[pg.Config]()
		if err != nil {
			return err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		a.checks["postgres"] = pg.Healthcheck(pool)
		if a.cfg.MigrateOnStart {
			if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pgCfg, a.log); err != nil {
				return err
			}
		}
		a.store = pgstore.New(pool)
		return nil
	}
	return errUnknownStorage
}

// billingProvider talks to Stripe when a key is configured and falls back to
// the in-memory provider, priced from the catalog, otherwise.
func (a *app) billingProvider(catalog *plans.Catalog) (billing.Provider, error) {
	stripeCfg := config.MustLoad[billing.StripeConfig]()
	if stripeCfg.SecretKey == "" {
		a.log.Warn("STRIPE_SECRET_KEY is not set, using the in-memory billing provider")
		var opts []billing.MemoryOption
		for _, p := range catalog.List() {
			if p.PriceID != "" {
				opts = append(opts, billing.WithPrice(p.PriceID, p.Price.Shift(2).IntPart()))
			}
		}
		return billing.NewMemoryProvider(opts...), nil
	}

	stripe, err := billing.NewStripeProvider(stripeCfg)
	if err != nil {
		return nil, err
	}
	return billing.WithRetry(stripe, billing.RetryConfig{
		MaxRetries:  stripeCfg.MaxRetries,
		Base:        stripeCfg.RetryBase,
		CallTimeout: stripeCfg.CallTimeout,
	}, a.log), nil
}

func (a *app) openRedis(ctx context.Context) error {
	if !a.cfg.Redis {
		return nil
	}
	redisCfg, err := config.Load[redis.Config]()
	if err != nil {
		return err
	}
	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	a.redis = client
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.checks["redis"] = redis.Healthcheck(client)
	return nil
}

// buildLimiters creates the consume and signup limiters. A zero limit turns
// the corresponding one off.
func (a *app) buildLimiters() error {
	var store ratelimit.Store = ratelimit.NewMemoryStore()
	if a.redis != nil {
		store = ratelimit.NewRedisStore(a.redis, a.cfg.Service+":rl:")
	}

	build := func(prefix string) (ratelimit.Limiter, error) {
		cfg, err := config.Load[ratelimit.Config](config.WithPrefix(prefix))
		if err != nil || !cfg.Enabled() {
			return nil, err
		}
		return ratelimit.NewFixedWindow(store, cfg)
	}

	var err error
	if a.consumeRL, err = build("RATE_LIMIT_CONSUME_"); err != nil {
		return err
	}
	a.signupRL, err = build("RATE_LIMIT_SIGNUP_")
	return err
}

func (a *app) buildSweeper(ctx context.Context) error {
	sweepCfg, err := config.Load[sweeper.Config]()
	if err != nil {
		return err
	}
	a.sweepCfg = sweepCfg

	opts := []sweeper.Option{
		sweeper.WithLogger(a.log),
		sweeper.WithMetrics(sweeper.NewMetrics(a.registry)),
	}

	if a.redis != nil {
		opts = append(opts, sweeper.WithLocker(redis.NewLocker(a.redis, a.cfg.Service+":lock:")))
	}

	backupCfg, err := config.Load[sweeper.BackupConfig](config.WithPrefix("BACKUP_"))
	if err != nil {
		return err
	}
	if backupCfg.Enabled() {
		uploader, err := sweeper.NewS3Uploader(ctx, backupCfg)
		if err != nil {
			return err
		}
		opts = append(opts, sweeper.WithUploader(uploader))
	}

	a.sweeper = sweeper.New(a.store, a.lifecycle, sweepCfg, opts...)
	return nil
}
