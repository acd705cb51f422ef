// Package pg holds PostgreSQL plumbing shared by creditkit stores: pool
// construction with retry, embedded goose migrations, a transaction helper
// and classifiers for the SQLSTATE codes the stores care about.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, "migrations", cfg, log); err != nil {
//		return err
//	}
//	err = pg.WithTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
//		// SELECT ... FOR UPDATE, writes
//		return nil
//	})
package pg
