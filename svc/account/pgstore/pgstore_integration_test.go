//go:build integration

package pgstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrymomot/creditkit/pkg/pg"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/account/pgstore"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker not available, skipping integration tests")
	}
	_ = provider.Close()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("creditkit_test"),
		postgres.WithUsername("creditkit"),
		postgres.WithPassword("creditkit"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := pg.Config{ConnectionString: connStr, MaxConns: 10, RetryAttempts: 3, RetryInterval: time.Second}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, nil))
	return pool
}

func TestStore(t *testing.T) {
	pool := setupPool(t)
	store := pgstore.New(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	a := account.New("pg@example.com", now)
	a.CreditExpiresAt = account.TimePtr(now.Add(-time.Hour))
	require.NoError(t, store.Create(ctx, a))
	assert.ErrorIs(t, store.Create(ctx, a), account.ErrAccountExists)

	t.Run("commit", func(t *testing.T) {
		err := store.InTx(ctx, func(ctx context.Context, tx account.Tx) error {
			acc, err := tx.GetForUpdate(ctx, a.ID)
			if err != nil {
				return err
			}
			acc.CreditsRemaining = 10
			if err := tx.Update(ctx, acc); err != nil {
				return err
			}
			if err := tx.AppendTransaction(ctx, &account.Transaction{
				AccountID: a.ID, Amount: 10, Kind: account.KindPurchase, BalanceAfter: 10,
				Metadata: map[string]string{"source": "test"}, CreatedAt: now,
			}); err != nil {
				return err
			}
			return tx.AppendEvent(ctx, account.NewEvent(a.ID, account.ResumedData{Automatic: true, ResumedAt: now}, now))
		})
		require.NoError(t, err)

		got, err := store.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), got.CreditsRemaining)

		txs, err := store.ListTransactions(ctx, a.ID, 0)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, "test", txs[0].Metadata["source"])

		events, err := store.ListEvents(ctx, a.ID, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, account.ResumedData{Automatic: true, ResumedAt: now}, events[0].Data)
	})

	t.Run("check constraint rolls back", func(t *testing.T) {
		err := store.InTx(ctx, func(ctx context.Context, tx account.Tx) error {
			acc, _ := tx.GetForUpdate(ctx, a.ID)
			acc.CreditsRemaining = -1
			return tx.Update(ctx, acc)
		})
		assert.ErrorIs(t, err, account.ErrNegativeBalance)
	})

	t.Run("row lock serializes writers", func(t *testing.T) {
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.InTx(ctx, func(ctx context.Context, tx account.Tx) error {
					acc, err := tx.GetForUpdate(ctx, a.ID)
					if err != nil {
						return err
					}
					if acc.CreditsRemaining < 10 {
						return errors.New("insufficient")
					}
					acc.CreditsRemaining -= 10
					return tx.Update(ctx, acc)
				})
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, successes)
	})

	t.Run("find and backups", func(t *testing.T) {
		ids, err := store.Find(ctx, account.Query{CreditsExpiredAt: &now})
		require.NoError(t, err)
		assert.Contains(t, ids, a.ID)

		txs, err := store.TransactionsAfter(ctx, 0, 0)
		require.NoError(t, err)
		require.NotEmpty(t, txs)

		last, err := store.LastBackup(ctx)
		require.NoError(t, err)
		assert.Nil(t, last)
	})
}
