package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/creditkit/pkg/config"
	"github.com/dmitrymomot/creditkit/pkg/httpserver"
	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/svc/httpapi"
)

func newServeCmd() *cobra.Command {
	var noCron bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the sweeper on schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if !noCron {
				c, err := a.schedule(ctx)
				if err != nil {
					return err
				}
				c.Start()
				defer func() { <-c.Stop().Done() }()
			}

			opts := []httpapi.Option{
				httpapi.WithSweeper(a.sweeper),
				httpapi.WithGatherer(a.registry),
				httpapi.WithLogger(a.log),
			}
			if a.consumeRL != nil {
				opts = append(opts, httpapi.WithConsumeLimiter(a.consumeRL))
			}
			if a.signupRL != nil {
				opts = append(opts, httpapi.WithSignupLimiter(a.signupRL))
			}
			for name, check := range a.checks {
				opts = append(opts, httpapi.WithCheck(name, check))
			}
			api := httpapi.New(config.MustLoad[httpapi.Config](), a.lifecycle, a.ledger, opts...)

			srv := httpserver.New(config.MustLoad[httpserver.Config](), httpserver.WithLogger(a.log))
			return srv.Run(ctx, api)
		},
	}
	cmd.Flags().BoolVar(&noCron, "no-cron", false, "serve the API without the scheduled sweeper")
	return cmd
}

// schedule registers the sweeper on the configured cron spec. A pass that is
// still running when the next tick fires makes that tick a no-op.
func (a *app) schedule(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(a.sweepCfg.Schedule, func() {
		if _, err := a.sweeper.Run(ctx, time.Now()); err != nil {
			a.log.ErrorContext(ctx, "scheduled sweep failed", logger.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	a.log.InfoContext(ctx, "sweeper scheduled", "schedule", a.sweepCfg.Schedule)
	return c, nil
}
