package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/svc/account"
)

// Entry describes one balance mutation.
type Entry struct {
	Kind        account.TransactionKind
	Amount      int64 // signed delta
	Description string
	Metadata    map[string]string
}

// Service is the credit ledger: an append-only transaction log plus the
// materialized balance on the account row. Every mutation locks the account
// row, writes the new balance and exactly one transaction in one commit.
type Service struct {
	store   account.Store
	now     func() time.Time
	log     *slog.Logger
	metrics *Metrics
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService panics if store is nil.
func NewService(store account.Store, opts ...ServiceOption) *Service {
	if store == nil {
		panic("ledger: store is required")
	}
	s := &Service{store: store, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant adds credits, e.g. a purchase or a subscription allotment.
func (s *Service) Grant(ctx context.Context, accountID uuid.UUID, amount int64, kind account.TransactionKind, description string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	switch kind {
	case account.KindPurchase, account.KindSubscriptionGrant, account.KindRefund:
	default:
		return 0, fmt.Errorf("%w: %q cannot grant credits", ErrInvalidKind, kind)
	}
	return s.apply(ctx, accountID, func(*account.Account) (Entry, error) {
		return Entry{Kind: kind, Amount: amount, Description: description}, nil
	})
}

// Consume spends credits. It fails with ErrInsufficientCredits and changes
// nothing when amount exceeds the balance.
func (s *Service) Consume(ctx context.Context, accountID uuid.UUID, amount int64, description string) (int64, error) {
	return s.ConsumeWithMetadata(ctx, accountID, amount, description, nil)
}

// ConsumeWithMetadata is Consume with extra metadata stored on the
// transaction, e.g. {"operation": "upscale"}.
func (s *Service) ConsumeWithMetadata(ctx context.Context, accountID uuid.UUID, amount int64, description string, metadata map[string]string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := s.apply(ctx, accountID, func(a *account.Account) (Entry, error) {
		if amount > a.CreditsRemaining {
			return Entry{}, ErrInsufficientCredits
		}
		return Entry{Kind: account.KindUsage, Amount: -amount, Description: description, Metadata: metadata}, nil
	})
	if errors.Is(err, ErrInsufficientCredits) {
		s.metrics.rejected()
	}
	return balance, err
}

// Refund returns previously consumed credits.
func (s *Service) Refund(ctx context.Context, accountID uuid.UUID, amount int64, description string) (int64, error) {
	return s.Grant(ctx, accountID, amount, account.KindRefund, description)
}

// Adjust applies an administrative signed delta. A negative delta larger
// than the balance is refused with ErrInsufficientCredits and nothing is
// written.
func (s *Service) Adjust(ctx context.Context, accountID uuid.UUID, delta int64, reason string) (int64, error) {
	if delta == 0 {
		return 0, ErrInvalidAmount
	}
	return s.apply(ctx, accountID, func(a *account.Account) (Entry, error) {
		if a.CreditsRemaining+delta < 0 {
			return Entry{}, ErrInsufficientCredits
		}
		return Entry{
			Kind:        account.KindManualAdjustment,
			Amount:      delta,
			Description: reason,
		}, nil
	})
}

// Reset overwrites the balance with allotment. Unused credits are forfeited.
func (s *Service) Reset(ctx context.Context, accountID uuid.UUID, allotment int64, description string) (int64, error) {
	if allotment < 0 {
		return 0, ErrInvalidAmount
	}
	return s.apply(ctx, accountID, func(a *account.Account) (Entry, error) {
		return ResetEntry(a, allotment, description), nil
	})
}

// ResetEntry builds the entry that moves a's balance to allotment.
func ResetEntry(a *account.Account, allotment int64, description string) Entry {
	return Entry{
		Kind:        account.KindReset,
		Amount:      allotment - a.CreditsRemaining,
		Description: description,
		Metadata:    map[string]string{"previous_balance": fmt.Sprint(a.CreditsRemaining)},
	}
}

// Post applies e to a inside the caller's transaction: it updates
// a.CreditsRemaining and appends the transaction row. The caller persists a
// with tx.Update before committing.
func (s *Service) Post(ctx context.Context, tx account.Tx, a *account.Account, e Entry) (*account.Transaction, error) {
	if !e.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, e.Kind)
	}
	balance := a.CreditsRemaining + e.Amount
	if balance < 0 {
		return nil, ErrInsufficientCredits
	}

	now := s.now().UTC()
	t := &account.Transaction{
		ID:           uuid.New(),
		AccountID:    a.ID,
		Amount:       e.Amount,
		Kind:         e.Kind,
		Description:  e.Description,
		BalanceAfter: balance,
		Metadata:     maps.Clone(e.Metadata),
		CreatedAt:    now,
	}
	if err := tx.AppendTransaction(ctx, t); err != nil {
		return nil, mapStoreErr(err)
	}
	a.CreditsRemaining = balance
	a.UpdatedAt = now
	return t, nil
}

func (s *Service) apply(ctx context.Context, accountID uuid.UUID, build func(*account.Account) (Entry, error)) (int64, error) {
	var posted *account.Transaction
	err := s.store.InTx(ctx, func(ctx context.Context, tx account.Tx) error {
		a, err := tx.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		e, err := build(a)
		if err != nil {
			return err
		}
		if posted, err = s.Post(ctx, tx, a, e); err != nil {
			return err
		}
		return tx.Update(ctx, a)
	})
	if err != nil {
		return 0, mapStoreErr(err)
	}

	s.metrics.observe(posted)
	s.log.DebugContext(ctx, "credit transaction committed",
		logger.AccountID(accountID),
		slog.String("kind", string(posted.Kind)),
		logger.Amount(posted.Amount),
		logger.Balance(posted.BalanceAfter),
	)
	return posted.BalanceAfter, nil
}

// Observe records a transaction posted by another service through Post.
func (s *Service) Observe(t *account.Transaction) {
	s.metrics.observe(t)
}

func mapStoreErr(err error) error {
	if errors.Is(err, account.ErrNegativeBalance) {
		return errors.Join(ErrInsufficientCredits, err)
	}
	return err
}
