package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/pkg/redis"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/lifecycle"
)

// LockName is the lease a Run holds.
const LockName = "sweeper"

const (
	stepExpire = "expire"
	stepResume = "resume"
	stepRenew  = "renew"

	resultOK      = "ok"
	resultFailed  = "failed"
	resultSkipped = "skipped"
)

// Lifecycle is the slice of the lifecycle service a sweep drives.
// *lifecycle.Service implements it.
type Lifecycle interface {
	ExpireCredits(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
	AutoResume(ctx context.Context, id uuid.UUID, now time.Time) (*account.Account, error)
	RenewPeriod(ctx context.Context, id uuid.UUID, now time.Time) (*lifecycle.Renewal, error)
}

// Report sums up one Run.
type Report struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Skipped    bool          `json:"skipped"`
	Expired    int           `json:"expired"`
	Forfeited  int64         `json:"forfeited"`
	Resumed    int           `json:"resumed"`
	Renewed    int           `json:"renewed"`
	Ended      int           `json:"ended"`
	Failed     int           `json:"failed"`
	BackedUp   int           `json:"backed_up"`
	BackupKeys []string      `json:"backup_keys,omitempty"`
}

// Sweeper runs maintenance passes. It is safe for concurrent use; overlapping
// runs are serialized through the Locker.
type Sweeper struct {
	store     account.Store
	lifecycle Lifecycle
	cfg       Config
	locker    Locker
	uploader  Uploader
	metrics   *Metrics
	log       *slog.Logger
}

type Option func(*Sweeper)

func WithLocker(l Locker) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithUploader turns on the ledger backup step.
func WithUploader(u Uploader) Option {
	return func(s *Sweeper) { s.uploader = u }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Sweeper) { s.log = log }
}

// New panics on a nil store or lifecycle, or an invalid cfg.
func New(store account.Store, lc Lifecycle, cfg Config, opts ...Option) *Sweeper {
	if store == nil || lc == nil {
		panic("sweeper: store and lifecycle are required")
	}
	if err := cfg.validate(); err != nil {
		panic(err)
	}
	s := &Sweeper{
		store:     store,
		lifecycle: lc,
		cfg:       cfg,
		locker:    nopLocker{},
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("sweeper"))
	return s
}

// Run performs one pass at now. Per-account failures are counted in the
// report; the returned error covers the lock, the store and the backup.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (Report, error) {
	now = now.UTC()
	r := Report{StartedAt: now}
	started := time.Now()

	release, err := s.locker.Acquire(ctx, LockName, s.cfg.LockTTL)
	if errors.Is(err, redis.ErrLockNotAcquired) {
		s.log.InfoContext(ctx, "sweep already running elsewhere, skipping")
		r.Skipped = true
		s.metrics.run(resultSkipped, 0, now)
		return r, nil
	}
	if err != nil {
		s.metrics.run(resultFailed, time.Since(started), now)
		return r, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.WarnContext(ctx, "failed to release sweep lock", logger.Error(err))
		}
	}()

	err = s.run(ctx, now, &r)
	r.Duration = time.Since(started)

	result := resultOK
	if err != nil {
		result = resultFailed
		s.log.ErrorContext(ctx, "sweep failed", logger.Error(err))
	}
	s.metrics.run(result, r.Duration, now)

	s.log.InfoContext(ctx, "sweep finished",
		slog.Int("expired", r.Expired),
		slog.Int64("forfeited", r.Forfeited),
		slog.Int("resumed", r.Resumed),
		slog.Int("renewed", r.Renewed),
		slog.Int("ended", r.Ended),
		slog.Int("failed", r.Failed),
		slog.Int("backed_up", r.BackedUp),
		logger.Duration(r.Duration),
	)
	return r, err
}

func (s *Sweeper) run(ctx context.Context, now time.Time, r *Report) error {
	t := &tally{r: r}

	// Expiry goes first so a renewal never grants on top of stale credits.
	err := s.each(ctx, stepExpire, account.Query{CreditsExpiredAt: &now}, t, func(ctx context.Context, id uuid.UUID) error {
		n, err := s.lifecycle.ExpireCredits(ctx, id, now)
		if err == nil {
			t.add(func(r *Report) {
				r.Expired++
				r.Forfeited += n
			})
		}
		return err
	})
	if err != nil {
		return err
	}

	err = s.each(ctx, stepResume, account.Query{PausedUntilAt: &now}, t, func(ctx context.Context, id uuid.UUID) error {
		_, err := s.lifecycle.AutoResume(ctx, id, now)
		if err == nil {
			t.add(func(r *Report) { r.Resumed++ })
		}
		return err
	})
	if err != nil {
		return err
	}

	err = s.each(ctx, stepRenew, account.Query{PeriodEndedAt: &now}, t, func(ctx context.Context, id uuid.UUID) error {
		renewal, err := s.lifecycle.RenewPeriod(ctx, id, now)
		if err != nil {
			return err
		}
		t.add(func(r *Report) {
			if renewal.Outcome == lifecycle.OutcomeEnded {
				r.Ended++
			} else {
				r.Renewed++
			}
		})
		return nil
	})
	if err != nil {
		return err
	}

	return s.backup(ctx, now, r)
}

// each pages through the accounts matching q and calls fn for every id with
// at most cfg.Concurrency calls in flight.
func (s *Sweeper) each(ctx context.Context, step string, q account.Query, t *tally, fn func(context.Context, uuid.UUID) error) error {
	q.Limit = s.cfg.BatchSize

	for {
		ids, err := s.store.Find(ctx, q)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		var g errgroup.Group
		g.SetLimit(s.cfg.Concurrency)
		for _, id := range ids {
			g.Go(func() error {
				err := fn(ctx, id)
				switch {
				case err == nil:
					s.metrics.account(step, resultOK)
				case lifecycle.IsNotDue(err):
					s.metrics.account(step, resultSkipped)
				default:
					s.metrics.account(step, resultFailed)
					s.log.ErrorContext(ctx, "sweep step failed for account",
						slog.String("step", step),
						logger.AccountID(id),
						logger.Error(err),
					)
					t.add(func(r *Report) { r.Failed++ })
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return err
		}
		if len(ids) < q.Limit {
			return nil
		}
		q.After = ids[len(ids)-1]
	}
}

// tally serializes report updates from the worker goroutines.
type tally struct {
	mu sync.Mutex
	r  *Report
}

func (t *tally) add(fn func(r *Report)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.r)
}
