package sweeper

import "time"

// Config controls the sweep schedule and its fan-out.
type Config struct {
	// Schedule is a robfig/cron spec, descriptors like "@hourly" included.
	Schedule    string        `env:"SWEEPER_SCHEDULE" envDefault:"@every 15m"`
	BatchSize   int           `env:"SWEEPER_BATCH_SIZE" envDefault:"200"`
	Concurrency int           `env:"SWEEPER_CONCURRENCY" envDefault:"4"`
	LockTTL     time.Duration `env:"SWEEPER_LOCK_TTL" envDefault:"10m"`
	// BackupBatchSize caps the transactions written into one backup object.
	BackupBatchSize int `env:"SWEEPER_BACKUP_BATCH_SIZE" envDefault:"10000"`
	// BackupSettle holds back transactions younger than this. A lower seq can
	// commit after a higher one, so only rows older than any open
	// transaction are exported.
	BackupSettle time.Duration `env:"SWEEPER_BACKUP_SETTLE" envDefault:"1m"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		Schedule:        "@every 15m",
		BatchSize:       200,
		Concurrency:     4,
		LockTTL:         10 * time.Minute,
		BackupBatchSize: 10000,
		BackupSettle:    time.Minute,
	}
}

func (c Config) validate() error {
	if c.BatchSize <= 0 || c.Concurrency <= 0 || c.LockTTL <= 0 || c.BackupBatchSize <= 0 || c.BackupSettle < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// BackupConfig points the ledger export at an S3 bucket or an S3-compatible
// service. It is usually loaded with the "BACKUP_" prefix. An empty Bucket
// turns backups off.
type BackupConfig struct {
	Bucket         string        `env:"S3_BUCKET"`
	Region         string        `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint       string        `env:"S3_ENDPOINT"` // MinIO and friends
	Prefix         string        `env:"S3_PREFIX" envDefault:"ledger"`
	AccessKeyID    string        `env:"S3_ACCESS_KEY_ID"`
	SecretKey      string        `env:"S3_SECRET_KEY"`
	ForcePathStyle bool          `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
	UploadTimeout  time.Duration `env:"S3_UPLOAD_TIMEOUT" envDefault:"30s"`
}

// Enabled reports whether a bucket is configured.
func (c BackupConfig) Enabled() bool {
	return c.Bucket != ""
}
