package pause

// Config holds pause policy settings.
type Config struct {
	YearlyLimit int `env:"PAUSE_YEARLY_LIMIT" envDefault:"2"`
}

// DefaultConfig returns the policy used when nothing is configured.
func DefaultConfig() Config {
	return Config{YearlyLimit: 2}
}
