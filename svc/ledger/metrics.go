package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrymomot/creditkit/svc/account"
)

// Metrics exports ledger activity. A nil *Metrics records nothing.
type Metrics struct {
	entries      *prometheus.CounterVec
	credits      *prometheus.CounterVec
	insufficient prometheus.Counter
}

// NewMetrics registers ledger collectors on reg, or on the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		entries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditkit",
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Committed credit transactions by kind.",
		}, []string{"kind"}),
		credits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditkit",
			Subsystem: "ledger",
			Name:      "credits_total",
			Help:      "Absolute credits moved by committed transactions, by kind and direction.",
		}, []string{"kind", "direction"}),
		insufficient: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "creditkit",
			Subsystem: "ledger",
			Name:      "insufficient_credits_total",
			Help:      "Consume attempts rejected for lack of credits.",
		}),
	}
}

func (m *Metrics) observe(t *account.Transaction) {
	if m == nil || t == nil {
		return
	}
	kind := string(t.Kind)
	m.entries.WithLabelValues(kind).Inc()
	switch {
	case t.Amount > 0:
		m.credits.WithLabelValues(kind, "in").Add(float64(t.Amount))
	case t.Amount < 0:
		m.credits.WithLabelValues(kind, "out").Add(float64(-t.Amount))
	}
}

func (m *Metrics) rejected() {
	if m == nil {
		return
	}
	m.insufficient.Inc()
}
