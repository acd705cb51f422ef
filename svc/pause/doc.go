// Package pause decides whether a subscription may be paused and performs
// the pause at the billing provider.
//
// A pause never shortens a paid period: collection resumes 2 weeks, 1 month
// or 2 months after the current period ends. Accounts may pause a limited
// number of times per calendar year (PAUSE_YEARLY_LIMIT, default 2).
//
// Apply only talks to the provider. The returned Result is applied to the
// account by the caller, inside its own transaction, with Result.ApplyTo.
package pause
