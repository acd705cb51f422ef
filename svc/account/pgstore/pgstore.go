// Package pgstore implements account.Store on PostgreSQL with pgx.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/creditkit/pkg/pg"
	"github.com/dmitrymomot/creditkit/svc/account"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

var _ account.Store = (*Store)(nil)

// New panics if pool is nil.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pool is required")
	}
	return &Store{pool: pool}
}

const accountColumns = `id, email, credits_remaining, subscription_plan, subscription_status,
	billing_customer_ref, billing_subscription_ref, pause_count, last_pause_date,
	subscription_paused_until, discount_used_count, last_discount_date, credits_reset_at,
	credit_expires_at, current_period_start, current_period_end, created_at, updated_at`

func scanAccount(row pgx.Row) (*account.Account, error) {
	var a account.Account
	err := row.Scan(
		&a.ID, &a.Email, &a.CreditsRemaining, &a.Plan, &a.Status,
		&a.CustomerRef, &a.SubscriptionRef, &a.PauseCount, &a.LastPauseDate,
		&a.PausedUntil, &a.DiscountUsedCount, &a.LastDiscountDate, &a.CreditsResetAt,
		&a.CreditExpiresAt, &a.CurrentPeriodStart, &a.CurrentPeriodEnd, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, account.ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) Create(ctx context.Context, a *account.Account) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		a.ID, a.Email, a.CreditsRemaining, a.Plan, a.Status,
		a.CustomerRef, a.SubscriptionRef, a.PauseCount, a.LastPauseDate,
		a.PausedUntil, a.DiscountUsedCount, a.LastDiscountDate, a.CreditsResetAt,
		a.CreditExpiresAt, a.CurrentPeriodStart, a.CurrentPeriodEnd, a.CreatedAt, a.UpdatedAt,
	)
	switch {
	case pg.IsDuplicateKeyError(err):
		return account.ErrAccountExists
	case pg.IsCheckViolationError(err):
		return account.ErrNegativeBalance
	case err != nil:
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx account.Tx) error) error {
	return pg.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &pgTx{q: tx})
	})
}

const txColumns = `seq, id, account_id, amount, kind, description, balance_after, metadata, created_at`

func scanTransactions(rows pgx.Rows) ([]account.Transaction, error) {
	defer rows.Close()
	var out []account.Transaction
	for rows.Next() {
		var t account.Transaction
		if err := rows.Scan(&t.Seq, &t.ID, &t.AccountID, &t.Amount, &t.Kind, &t.Description, &t.BalanceAfter, &t.Metadata, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]account.Transaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+txColumns+` FROM credit_transactions
		WHERE account_id = $1 ORDER BY seq DESC LIMIT NULLIF($2, 0)`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return scanTransactions(rows)
}

func (s *Store) TransactionsAfter(ctx context.Context, afterSeq int64, limit int) ([]account.Transaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+txColumns+` FROM credit_transactions
		WHERE seq > $1 ORDER BY seq LIMIT NULLIF($2, 0)`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions after %d: %w", afterSeq, err)
	}
	return scanTransactions(rows)
}

func (s *Store) ListEvents(ctx context.Context, accountID uuid.UUID, limit int) ([]account.Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, account_id, event_type, event_data, created_at
		FROM subscription_events WHERE account_id = $1 ORDER BY created_at DESC, id LIMIT NULLIF($2, 0)`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []account.Event
	for rows.Next() {
		var (
			e   account.Event
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Type, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Data, err = account.DecodeEventData(e.Type, raw); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Find(ctx context.Context, q account.Query) ([]uuid.UUID, error) {
	var (
		where = "id > $1"
		args  = []any{q.After}
	)
	switch {
	case q.CreditsExpiredAt != nil:
		where += " AND credit_expires_at <= $2"
		args = append(args, *q.CreditsExpiredAt)
	case q.PausedUntilAt != nil:
		where += " AND subscription_status = 'paused' AND subscription_paused_until <= $2"
		args = append(args, *q.PausedUntilAt)
	case q.PeriodEndedAt != nil:
		where += " AND subscription_status <> 'paused' AND current_period_end <= $2"
		args = append(args, *q.PeriodEndedAt)
	}
	args = append(args, q.Limit)
	sql := fmt.Sprintf(`SELECT id FROM accounts WHERE %s ORDER BY id LIMIT NULLIF($%d, 0)`, where, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("find accounts: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (s *Store) LastBackup(ctx context.Context) (*account.Backup, error) {
	var b account.Backup
	err := s.pool.QueryRow(ctx, `SELECT id, object_key, from_seq, to_seq, row_count, created_at
		FROM ledger_backups ORDER BY to_seq DESC LIMIT 1`).
		Scan(&b.ID, &b.Key, &b.FromSeq, &b.ToSeq, &b.Count, &b.CreatedAt)
	if pg.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last backup: %w", err)
	}
	return &b, nil
}

func (s *Store) SaveBackup(ctx context.Context, b account.Backup) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO ledger_backups (id, object_key, from_seq, to_seq, row_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, b.ID, b.Key, b.FromSeq, b.ToSeq, b.Count, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("save backup: %w", err)
	}
	return nil
}

type pgTx struct {
	q querier
}

func (t *pgTx) GetForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return scanAccount(t.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) Update(ctx context.Context, a *account.Account) error {
	tag, err := t.q.Exec(ctx, `UPDATE accounts SET
		email = $2, credits_remaining = $3, subscription_plan = $4, subscription_status = $5,
		billing_customer_ref = $6, billing_subscription_ref = $7, pause_count = $8, last_pause_date = $9,
		subscription_paused_until = $10, discount_used_count = $11, last_discount_date = $12,
		credits_reset_at = $13, credit_expires_at = $14, current_period_start = $15,
		current_period_end = $16, updated_at = $17
		WHERE id = $1`,
		a.ID, a.Email, a.CreditsRemaining, a.Plan, a.Status,
		a.CustomerRef, a.SubscriptionRef, a.PauseCount, a.LastPauseDate,
		a.PausedUntil, a.DiscountUsedCount, a.LastDiscountDate,
		a.CreditsResetAt, a.CreditExpiresAt, a.CurrentPeriodStart,
		a.CurrentPeriodEnd, a.UpdatedAt,
	)
	if pg.IsCheckViolationError(err) {
		return account.ErrNegativeBalance
	}
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, tr *account.Transaction) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	meta := tr.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	err := t.q.QueryRow(ctx, `INSERT INTO credit_transactions
		(id, account_id, amount, kind, description, balance_after, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING seq`,
		tr.ID, tr.AccountID, tr.Amount, tr.Kind, tr.Description, tr.BalanceAfter, meta, tr.CreatedAt,
	).Scan(&tr.Seq)
	if pg.IsCheckViolationError(err) {
		return account.ErrNegativeBalance
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, e account.Event) error {
	if e.Data == nil {
		return errors.Join(account.ErrUnknownEventType, errors.New("event without data"))
	}
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err = t.q.Exec(ctx, `INSERT INTO subscription_events (id, account_id, event_type, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5)`, e.ID, e.AccountID, e.Type, raw, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
