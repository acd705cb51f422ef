// Package sweeper runs the scheduled maintenance pass over all accounts.
//
// One Run walks four steps in order:
//
//  1. forfeit credits whose credit_expires_at has passed,
//  2. resume paused accounts whose paused_until has passed,
//  3. renew or end accounts whose billing period is over,
//  4. export ledger transactions written since the last export to object
//     storage as JSON lines, when an Uploader is configured.
//
// Every per-account action goes through the lifecycle service, which re-checks
// its guard under the account row lock, so a second Run over the same data is
// a no-op. A Locker keeps two replicas from sweeping at the same time; a run
// that cannot take the lock reports Skipped and returns no error.
//
// Accounts are paged by id and handled by a bounded pool of goroutines. One
// account failing is logged and counted in Report.Failed; it never stops the
// pass.
package sweeper
