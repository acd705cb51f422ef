package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/creditkit/pkg/config"
	"github.com/dmitrymomot/creditkit/pkg/pg"
	"github.com/dmitrymomot/creditkit/svc/account/pgstore"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load[appConfig]()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			pgCfg, err := config.Load[pg.Config]()
			if err != nil {
				return err
			}
			pool, err := pg.Connect(ctx, pgCfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			return pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pgCfg, log)
		},
	}
}
