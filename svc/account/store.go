package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists accounts, their credit ledger and subscription events.
type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, id uuid.UUID) (*Account, error)

	// InTx runs fn in a single transaction. Everything fn writes through tx
	// is committed together when fn returns nil and discarded otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ListTransactions returns the newest transactions first. limit <= 0
	// returns all of them.
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]Transaction, error)
	ListEvents(ctx context.Context, accountID uuid.UUID, limit int) ([]Event, error)

	// TransactionsAfter returns transactions with Seq > afterSeq in Seq order.
	TransactionsAfter(ctx context.Context, afterSeq int64, limit int) ([]Transaction, error)

	// Find returns account ids matching q, ordered by id.
	Find(ctx context.Context, q Query) ([]uuid.UUID, error)

	LastBackup(ctx context.Context) (*Backup, error)
	SaveBackup(ctx context.Context, b Backup) error
}

// Tx is the write side of Store inside InTx.
type Tx interface {
	// GetForUpdate loads the account and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	Update(ctx context.Context, a *Account) error
	AppendTransaction(ctx context.Context, t *Transaction) error
	AppendEvent(ctx context.Context, e Event) error
}

// Query selects accounts for scheduled work. Only one of the time filters is
// expected to be set; with none set it pages through every account.
type Query struct {
	// CreditsExpiredAt matches credit_expires_at <= t.
	CreditsExpiredAt *time.Time
	// PausedUntilAt matches paused accounts whose paused_until <= t.
	PausedUntilAt *time.Time
	// PeriodEndedAt matches accounts that are not paused and whose
	// current_period_end <= t.
	PeriodEndedAt *time.Time

	After uuid.UUID
	Limit int
}

// Backup records one ledger export.
type Backup struct {
	ID        uuid.UUID
	Key       string
	FromSeq   int64
	ToSeq     int64
	Count     int
	CreatedAt time.Time
}
