package httpapi

import "github.com/dmitrymomot/creditkit/pkg/clientip"

type Config struct {
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"65536"`
	// HistoryLimit caps list endpoints when the caller asks for more.
	HistoryLimit int `env:"HTTP_HISTORY_LIMIT" envDefault:"100"`
	// IPHeaders are the proxy headers trusted for the client address, in
	// priority order.
	IPHeaders []string `env:"HTTP_TRUSTED_IP_HEADERS" envSeparator:"," envDefault:"X-Forwarded-For,X-Real-IP"`
}

func DefaultConfig() Config {
	return Config{
		MaxBodyBytes: 64 << 10,
		HistoryLimit: 100,
		IPHeaders:    clientip.DefaultHeaders,
	}
}
