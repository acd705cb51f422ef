// Package retention offers a one-time discount to subscribers who are about
// to leave.
//
// An account may use the discount once per cooldown window
// (DISCOUNT_COOLDOWN_MONTHS, default 6) and never while the provider
// subscription already carries a discount. The discount is a single
// redemption, duration "once" coupon of DISCOUNT_PERCENT (default 50) percent
// attached to the subscription, so it reduces the next invoice only.
package retention
