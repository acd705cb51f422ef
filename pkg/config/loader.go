package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// LoadEnv reads the given .env files into the process environment.
// Variables already set in the environment win over file values.
// With no paths it reads ./.env.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// Load parses environment variables into a new T using `env` struct tags.
// The default .env file is read once per process if present.
//
//	type DatabaseConfig struct {
//		ConnectionString string `env:"DATABASE_URL,required"`
//		MaxConns         int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
//	}
//
//	cfg, err := config.Load[DatabaseConfig]()
func Load[T any](opts ...Option) (T, error) {
	defaultEnvLoaded.Do(func() {
		// the .env file is optional
		_ = godotenv.Load()
	})

	o := env.Options{}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := env.ParseAsWithOptions[T](o)
	if err != nil {
		var zero T
		return zero, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad works like Load but panics if parsing fails.
// Use it in main for configuration the binary cannot start without.
func MustLoad[T any](opts ...Option) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return cfg
}

// Option tunes env parsing.
type Option func(*env.Options)

// WithPrefix prepends prefix to every variable name, e.g. "BACKUP_".
func WithPrefix(prefix string) Option {
	return func(o *env.Options) { o.Prefix = prefix }
}

// WithEnvironment parses from the given map instead of os.Environ.
func WithEnvironment(vars map[string]string) Option {
	return func(o *env.Options) { o.Environment = vars }
}
