// Package httpapi is the REST boundary over the credit ledger and the
// subscription lifecycle.
//
// Authentication happens upstream. A Resolver turns each request into an
// account id; the default reads the X-Account-ID header. Domain errors map to
// status codes in one place (writeError):
//
//	ledger.ErrInsufficientCredits        402
//	account.ErrNotEligible               403
//	no subscription, account/plan absent 404
//	invalid transition, nothing due      409
//	billing provider failure             502
//
// Every body is JSON. Errors carry {"error": ..., "reason": ...}; reason is the
// user-facing refusal text for eligibility failures.
package httpapi
