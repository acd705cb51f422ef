// Package account defines the billing account record, the immutable credit
// transaction and subscription event types, and the Store contract shared by
// the ledger, the subscription lifecycle and the sweeper.
//
// Invariants every Store implementation upholds:
//
//   - credits_remaining never drops below zero; a write that would do so
//     fails with ErrNegativeBalance and nothing in the transaction commits.
//   - transactions and events are append-only.
//   - Tx.GetForUpdate serializes concurrent writers on the same account.
//
// Implementations live in the memstore (tests, local runs) and pgstore
// (PostgreSQL) subpackages.
package account
