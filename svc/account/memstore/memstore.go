// Package memstore is an in-memory account.Store. Transactions are
// serialized by a single lock and applied to the shared state only on commit.
package memstore

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/creditkit/svc/account"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*account.Account
	txs      []account.Transaction
	events   []account.Event
	backups  []account.Backup
	seq      int64
}

var _ account.Store = (*Store)(nil)

func New() *Store {
	return &Store{accounts: make(map[uuid.UUID]*account.Account)}
}

func (s *Store) Create(_ context.Context, a *account.Account) error {
	if a == nil {
		return account.ErrAccountNotFound
	}
	if a.CreditsRemaining < 0 {
		return account.ErrNegativeBalance
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return account.ErrAccountExists
	}
	s.accounts[a.ID] = a.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx account.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, staged: make(map[uuid.UUID]*account.Account)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, a := range tx.staged {
		s.accounts[id] = a
	}
	for _, t := range tx.txs {
		s.seq++
		t.Seq = s.seq
		s.txs = append(s.txs, t)
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, accountID uuid.UUID, limit int) ([]account.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []account.Transaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].AccountID != accountID {
			continue
		}
		out = append(out, s.txs[i].Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListEvents(_ context.Context, accountID uuid.UUID, limit int) ([]account.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []account.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].AccountID != accountID {
			continue
		}
		out = append(out, s.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) TransactionsAfter(_ context.Context, afterSeq int64, limit int) ([]account.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []account.Transaction
	for _, t := range s.txs {
		if t.Seq <= afterSeq {
			continue
		}
		out = append(out, t.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Find(_ context.Context, q account.Query) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for id, a := range s.accounts {
		if bytes.Compare(id[:], q.After[:]) <= 0 {
			continue
		}
		if matches(a, q) {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	if q.Limit > 0 && len(ids) > q.Limit {
		ids = ids[:q.Limit]
	}
	return ids, nil
}

func matches(a *account.Account, q account.Query) bool {
	switch {
	case q.CreditsExpiredAt != nil:
		return a.CreditExpiresAt != nil && !a.CreditExpiresAt.After(*q.CreditsExpiredAt)
	case q.PausedUntilAt != nil:
		return a.Status == account.StatusPaused && a.PausedUntil != nil && !a.PausedUntil.After(*q.PausedUntilAt)
	case q.PeriodEndedAt != nil:
		return a.Status != account.StatusPaused && a.CurrentPeriodEnd != nil && !a.CurrentPeriodEnd.After(*q.PeriodEndedAt)
	}
	return true
}

func (s *Store) LastBackup(context.Context) (*account.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.backups) == 0 {
		return nil, nil
	}
	b := s.backups[len(s.backups)-1]
	return &b, nil
}

func (s *Store) SaveBackup(_ context.Context, b account.Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backups = append(s.backups, b)
	return nil
}

type memTx struct {
	store  *Store
	staged map[uuid.UUID]*account.Account
	txs    []account.Transaction
	events []account.Event
}

func (t *memTx) GetForUpdate(_ context.Context, id uuid.UUID) (*account.Account, error) {
	if a, ok := t.staged[id]; ok {
		return a.Clone(), nil
	}
	a, ok := t.store.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (t *memTx) Update(_ context.Context, a *account.Account) error {
	if a.CreditsRemaining < 0 {
		return account.ErrNegativeBalance
	}
	if _, ok := t.store.accounts[a.ID]; !ok {
		return account.ErrAccountNotFound
	}
	t.staged[a.ID] = a.Clone()
	return nil
}

func (t *memTx) AppendTransaction(_ context.Context, tr *account.Transaction) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	t.txs = append(t.txs, tr.Clone())
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, e account.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	t.events = append(t.events, e)
	return nil
}
