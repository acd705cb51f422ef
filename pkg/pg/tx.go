package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sethvargo/go-retry"
)

// TxBeginner is implemented by *pgxpool.Pool and pgx.Tx.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// WithTx runs fn inside a read-committed transaction. The transaction commits
// when fn returns nil and rolls back otherwise. Serialization failures and
// deadlocks restart the whole transaction a few times.
func WithTx(ctx context.Context, db TxBeginner, fn func(ctx context.Context, tx pgx.Tx) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(20*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := runTx(ctx, db, fn)
		if IsRetryableTxError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func runTx(ctx context.Context, db TxBeginner, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Join(ErrFailedToBeginTx, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !IsTxClosedError(rbErr) {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
