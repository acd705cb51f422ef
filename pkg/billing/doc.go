// Package billing talks to the payment provider.
//
// Provider is the narrow contract the subscription lifecycle needs: customers,
// subscriptions with a single priced item, pause-collection, cancel at period
// end and single-use percentage coupons. StripeProvider implements it with
// github.com/stripe/stripe-go/v74; MemoryProvider is an in-process stand-in
// for local runs and tests.
//
// Errors returned by providers are joined with ErrProvider. Missing customers
// or subscriptions additionally match ErrStaleReference, and failures worth
// retrying match ErrTransient. WithRetry wraps any Provider with per-call
// timeouts and exponential backoff (github.com/sethvargo/go-retry).
//
//	stripe, err := billing.NewStripeProvider(cfg)
//	provider := billing.WithRetry(stripe, billing.RetryConfig{
//		MaxRetries:  cfg.MaxRetries,
//		Base:        cfg.RetryBase,
//		CallTimeout: cfg.CallTimeout,
//	}, log)
package billing
