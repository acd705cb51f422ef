package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/svc/account"
)

var errReasonRequired = errors.New("--reason is required")

// creditOp applies one admin ledger operation and returns the new balance.
type creditOp func(ctx context.Context, a *app, id uuid.UUID, amount int64, reason string) (int64, error)

type creditResult struct {
	AccountID uuid.UUID `json:"account_id"`
	Operation string    `json:"operation"`
	Amount    int64     `json:"amount"`
	Balance   int64     `json:"balance"`
}

// newCreditsCmd groups the admin ledger commands. open builds the app each
// subcommand runs against.
func newCreditsCmd(open func(context.Context) (*app, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Grant, refund or adjust an account's credits",
	}
	cmd.AddCommand(
		newCreditOpCmd(open, "grant", "Grant purchased credits", func(ctx context.Context, a *app, id uuid.UUID, n int64, reason string) (int64, error) {
			return a.ledger.Grant(ctx, id, n, account.KindPurchase, reason)
		}),
		newCreditOpCmd(open, "refund", "Return previously consumed credits", func(ctx context.Context, a *app, id uuid.UUID, n int64, reason string) (int64, error) {
			return a.ledger.Refund(ctx, id, n, reason)
		}),
		newCreditOpCmd(open, "adjust", "Apply a signed manual adjustment", func(ctx context.Context, a *app, id uuid.UUID, n int64, reason string) (int64, error) {
			return a.ledger.Adjust(ctx, id, n, reason)
		}),
	)
	return cmd
}

func newCreditOpCmd(open func(context.Context) (*app, error), name, short string, op creditOp) *cobra.Command {
	var (
		accountID string
		amount    int64
		reason    string
	)

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(accountID)
			if err != nil {
				return err
			}
			if reason == "" {
				return errReasonRequired
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			balance, err := op(ctx, a, id, amount, reason)
			if err != nil {
				return err
			}
			a.log.InfoContext(ctx, "credits changed from the command line",
				logger.AccountID(id),
				logger.Amount(amount),
				logger.Balance(balance),
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(creditResult{AccountID: id, Operation: name, Amount: amount, Balance: balance})
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id")
	cmd.Flags().Int64Var(&amount, "amount", 0, "credits to apply; adjust accepts a negative value")
	cmd.Flags().StringVar(&reason, "reason", "", "description recorded on the transaction")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
