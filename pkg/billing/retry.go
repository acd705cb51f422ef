package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

type RetryConfig struct {
	MaxRetries  uint64
	Base        time.Duration
	CallTimeout time.Duration
}

// Retrying decorates a Provider so every call is bounded by CallTimeout and
// transient failures are retried with exponential backoff. Idempotency keys
// are forwarded unchanged, so a retried mutation is applied at most once.
type Retrying struct {
	next Provider
	cfg  RetryConfig
	log  *slog.Logger
}

func WithRetry(next Provider, cfg RetryConfig, log *slog.Logger) *Retrying {
	if next == nil {
		panic("billing: retry decorator requires a provider")
	}
	if cfg.Base <= 0 {
		cfg.Base = 200 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retrying{next: next, cfg: cfg, log: log}
}

func call[T any](ctx context.Context, r *Retrying, op string, fn func(context.Context) (T, error)) (T, error) {
	var (
		out     T
		attempt int
	)
	backoff := retry.WithMaxRetries(r.cfg.MaxRetries, retry.NewExponential(r.cfg.Base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		callCtx := ctx
		if r.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.cfg.CallTimeout)
			defer cancel()
		}

		res, err := fn(callCtx)
		if err != nil {
			if IsTransient(err) {
				r.log.WarnContext(ctx, "billing call failed, retrying",
					slog.String("op", op), slog.Int("attempt", attempt), slog.Any("error", err))
				return retry.RetryableError(err)
			}
			return err
		}
		out = res
		return nil
	})
	return out, err
}

func (r *Retrying) CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error) {
	return call(ctx, r, "create_customer", func(ctx context.Context) (*Customer, error) {
		return r.next.CreateCustomer(ctx, params)
	})
}

func (r *Retrying) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	return call(ctx, r, "create_subscription", func(ctx context.Context) (*Subscription, error) {
		return r.next.CreateSubscription(ctx, params)
	})
}

func (r *Retrying) GetSubscription(ctx context.Context, ref string) (*Subscription, error) {
	return call(ctx, r, "get_subscription", func(ctx context.Context) (*Subscription, error) {
		return r.next.GetSubscription(ctx, ref)
	})
}

func (r *Retrying) ChangePrice(ctx context.Context, params ChangePriceParams) (*Subscription, error) {
	return call(ctx, r, "change_price", func(ctx context.Context) (*Subscription, error) {
		return r.next.ChangePrice(ctx, params)
	})
}

func (r *Retrying) PauseCollection(ctx context.Context, ref string, resumesAt time.Time, key string) (*Subscription, error) {
	return call(ctx, r, "pause_collection", func(ctx context.Context) (*Subscription, error) {
		return r.next.PauseCollection(ctx, ref, resumesAt, key)
	})
}

func (r *Retrying) ResumeCollection(ctx context.Context, ref, key string) (*Subscription, error) {
	return call(ctx, r, "resume_collection", func(ctx context.Context) (*Subscription, error) {
		return r.next.ResumeCollection(ctx, ref, key)
	})
}

func (r *Retrying) CancelAtPeriodEnd(ctx context.Context, ref, key string) (*Subscription, error) {
	return call(ctx, r, "cancel_at_period_end", func(ctx context.Context) (*Subscription, error) {
		return r.next.CancelAtPeriodEnd(ctx, ref, key)
	})
}

func (r *Retrying) Reactivate(ctx context.Context, ref, key string) (*Subscription, error) {
	return call(ctx, r, "reactivate", func(ctx context.Context) (*Subscription, error) {
		return r.next.Reactivate(ctx, ref, key)
	})
}

func (r *Retrying) CreateCoupon(ctx context.Context, params CouponParams) (*Coupon, error) {
	return call(ctx, r, "create_coupon", func(ctx context.Context) (*Coupon, error) {
		return r.next.CreateCoupon(ctx, params)
	})
}

func (r *Retrying) ApplyCoupon(ctx context.Context, ref, couponID, key string) (*Subscription, error) {
	return call(ctx, r, "apply_coupon", func(ctx context.Context) (*Subscription, error) {
		return r.next.ApplyCoupon(ctx, ref, couponID, key)
	})
}
