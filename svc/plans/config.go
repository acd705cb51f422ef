package plans

import "context"

type Config struct {
	// File points to a YAML catalog. The built-in catalog is used when empty.
	File string `env:"PLANS_FILE"`
}

// FromConfig loads the catalog named by cfg.
func FromConfig(ctx context.Context, cfg Config) (*Catalog, error) {
	if cfg.File == "" {
		return Load(ctx, NewInMemSource(Defaults()...))
	}
	return Load(ctx, NewYAMLSource(cfg.File))
}
