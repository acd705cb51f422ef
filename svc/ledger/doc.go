// Package ledger grants, consumes and reconciles prepaid credits.
//
// The account row holds the running balance; credit_transactions holds one
// immutable row per change with the balance after it. Both are written in a
// single store transaction under the account row lock, so the last
// transaction's balance_after always equals credits_remaining and concurrent
// consumers cannot spend the same credit twice.
//
// Other services compose ledger writes into their own transactions with Post:
//
//	err := store.InTx(ctx, func(ctx context.Context, tx account.Tx) error {
//		a, err := tx.GetForUpdate(ctx, id)
//		if err != nil {
//			return err
//		}
//		a.Plan = "starter"
//		if _, err := ledger.Post(ctx, tx, a, ledger.Entry{Kind: account.KindSubscriptionGrant, Amount: 40}); err != nil {
//			return err
//		}
//		return tx.Update(ctx, a)
//	})
package ledger
