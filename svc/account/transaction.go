package account

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// TransactionKind classifies a ledger entry.
type TransactionKind string

const (
	KindPurchase          TransactionKind = "purchase"
	KindSubscriptionGrant TransactionKind = "subscription_grant"
	KindUsage             TransactionKind = "usage"
	KindRefund            TransactionKind = "refund"
	KindReset             TransactionKind = "reset"
	KindManualAdjustment  TransactionKind = "manual_adjustment"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case KindPurchase, KindSubscriptionGrant, KindUsage, KindRefund, KindReset, KindManualAdjustment:
		return true
	}
	return false
}

// Transaction is an immutable credit ledger row.
type Transaction struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	Amount       int64
	Kind         TransactionKind
	Description  string
	BalanceAfter int64
	Metadata     map[string]string
	CreatedAt    time.Time
	// Seq is assigned by the store and grows with insertion order.
	Seq int64
}

func (t Transaction) Clone() Transaction {
	t.Metadata = maps.Clone(t.Metadata)
	return t
}
