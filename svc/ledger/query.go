package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/creditkit/svc/account"
)

// Balance returns the materialized balance. Reads are not linearizable with
// concurrent writers.
func (s *Service) Balance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	a, err := s.store.Get(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return a.CreditsRemaining, nil
}

// History returns the newest transactions first.
func (s *Service) History(ctx context.Context, accountID uuid.UUID, limit int) ([]account.Transaction, error) {
	return s.store.ListTransactions(ctx, accountID, limit)
}

// Analytics summarizes an account's credit usage.
type Analytics struct {
	CreditsRemaining    int64           `json:"credits_remaining"`
	TotalUsed           int64           `json:"total_used"`
	TotalPurchased      int64           `json:"total_purchased"`
	MostUsedOperation   string          `json:"most_used_operation,omitempty"`
	UsageByOperation    map[string]int  `json:"usage_by_operation"`
	AverageMonthlyUsage decimal.Decimal `json:"average_monthly_usage"`
	AccountAgeMonths    int64           `json:"account_age_months"`
}

// Known operation names matched against usage descriptions when the
// transaction carries no "operation" metadata.
var knownOperations = []string{"upscale", "background-removal", "vectorize"}

func (s *Service) Analytics(ctx context.Context, accountID uuid.UUID, now time.Time) (*Analytics, error) {
	a, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, accountID, 0)
	if err != nil {
		return nil, err
	}

	out := &Analytics{
		CreditsRemaining: a.CreditsRemaining,
		UsageByOperation: make(map[string]int),
	}
	for _, t := range txs {
		switch t.Kind {
		case account.KindUsage:
			out.TotalUsed += -t.Amount
			if op := operationOf(t); op != "" {
				out.UsageByOperation[op]++
			}
		case account.KindPurchase, account.KindSubscriptionGrant:
			out.TotalPurchased += t.Amount
		}
	}
	out.MostUsedOperation = mostUsed(out.UsageByOperation)

	months := int64(now.Sub(a.CreatedAt).Hours() / 24 / 30)
	out.AccountAgeMonths = max(months, 1)
	out.AverageMonthlyUsage = decimal.NewFromInt(out.TotalUsed).
		Div(decimal.NewFromInt(out.AccountAgeMonths)).
		Round(2)

	return out, nil
}

func operationOf(t account.Transaction) string {
	if op := t.Metadata["operation"]; op != "" {
		return op
	}
	desc := strings.ToLower(t.Description)
	for _, op := range knownOperations {
		if strings.Contains(desc, op) || strings.Contains(desc, strings.ReplaceAll(op, "-", " ")) {
			return op
		}
	}
	return ""
}

func mostUsed(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
