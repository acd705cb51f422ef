package ratelimit

import (
	"context"
	"time"
)

// Config sets the limit applied per key within one window.
type Config struct {
	Limit  int           `env:"LIMIT" envDefault:"60"`
	Window time.Duration `env:"WINDOW" envDefault:"1m"`
}

// Enabled reports whether limiting is switched on. A zero limit disables it.
func (c Config) Enabled() bool { return c.Limit > 0 }

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait until the window resets, zero when allowed.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Store keeps one counter per key. Increment creates the counter with the
// given window when absent and returns the value after incrementing together
// with the time left in the window.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
	Delete(ctx context.Context, key string) error
}

// FixedWindow admits Limit requests per key in each Window.
type FixedWindow struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

type Option func(*FixedWindow)

func WithClock(now func() time.Time) Option {
	return func(f *FixedWindow) { f.now = now }
}

func NewFixedWindow(store Store, cfg Config, opts ...Option) (*FixedWindow, error) {
	switch {
	case store == nil:
		return nil, ErrStoreRequired
	case cfg.Limit <= 0:
		return nil, ErrInvalidLimit
	case cfg.Window <= 0:
		return nil, ErrInvalidWindow
	}
	f := &FixedWindow{store: store, limit: cfg.Limit, window: cfg.Window, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *FixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	count, ttl, err := f.store.Increment(ctx, key, f.window)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = f.window
	}
	return &Result{
		Allowed:   count <= int64(f.limit),
		Limit:     f.limit,
		Remaining: max(0, f.limit-int(count)),
		ResetAt:   f.now().Add(ttl),
	}, nil
}

// Reset clears the counter for key.
func (f *FixedWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return f.store.Delete(ctx, key)
}
