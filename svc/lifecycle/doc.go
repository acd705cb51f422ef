// Package lifecycle drives an account through its subscription states:
//
//	free ──subscribe──▶ active ──pause──▶ paused ──resume──▶ active
//	active/paused ──cancel──▶ cancelling ──reactivate──▶ active
//	cancelling ──renew (period over)──▶ cancelled ──subscribe──▶ active
//
// The allowed moves live in a pkg/statemachine Table; the account row holds
// the current state. Every operation follows the same shape: validate
// against the table, call the billing provider with an idempotency key
// derived from the account, the operation and its target, then lock the
// account row, re-check the transition and write the new state, any ledger
// entry and an audit event in one store transaction. Local state is never
// written before the provider confirms.
//
// Confirmation e-mails go out after commit through a Notifier. Their
// failures are logged and never returned.
package lifecycle
