package retention

import "github.com/shopspring/decimal"

// Config holds retention discount policy settings.
type Config struct {
	CooldownMonths int     `env:"DISCOUNT_COOLDOWN_MONTHS" envDefault:"6"`
	PercentOff     float64 `env:"DISCOUNT_PERCENT" envDefault:"50"`
}

func DefaultConfig() Config {
	return Config{CooldownMonths: 6, PercentOff: 50}
}

func (c Config) percent() decimal.Decimal {
	return decimal.NewFromFloat(c.PercentOff)
}
