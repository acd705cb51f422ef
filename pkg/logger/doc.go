// Package logger builds *slog.Logger instances for creditkit binaries.
//
// New takes functional options for level, format, output, static attributes
// and context extractors. The resulting handler is wrapped so that values
// stored in a context.Context (request id, account id) are attached to every
// record logged through the *Context methods.
//
// Attribute helpers such as AccountID, Amount and Balance keep key names
// consistent between the ledger, lifecycle and sweeper packages.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "creditd"),
//		logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	log.InfoContext(ctx, "credits consumed", logger.AccountID(id), logger.Amount(-5))
package logger
