// Package config loads typed configuration structs from the environment.
//
// It wraps github.com/joho/godotenv for .env files and
// github.com/caarlos0/env/v11 for tag-driven parsing. Each component of
// creditkit declares its own config struct next to its code (pg.Config,
// billing.StripeConfig, sweeper.Config, ...) and the binary loads them here:
//
//	pgCfg := config.MustLoad[pg.Config]()
//	backupCfg, err := config.Load[sweeper.BackupConfig](config.WithPrefix("BACKUP_"))
//
// Parsing failures are joined with ErrParsingConfig.
package config
