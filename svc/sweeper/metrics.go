package sweeper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports sweep activity. A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	accounts    *prometheus.CounterVec
	duration    prometheus.Histogram
	backedUp    prometheus.Counter
	lastSuccess prometheus.Gauge
}

// NewMetrics registers sweeper collectors on reg, or on the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditkit",
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Sweep runs by result.",
		}, []string{"result"}),
		accounts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditkit",
			Subsystem: "sweeper",
			Name:      "accounts_total",
			Help:      "Accounts visited by step and outcome.",
		}, []string{"step", "outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "creditkit",
			Subsystem: "sweeper",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a sweep run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		backedUp: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "creditkit",
			Subsystem: "sweeper",
			Name:      "backed_up_transactions_total",
			Help:      "Ledger transactions exported to object storage.",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "creditkit",
			Subsystem: "sweeper",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last sweep that finished without error.",
		}),
	}
}

func (m *Metrics) run(result string, d time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	if result == resultSkipped {
		return
	}
	m.duration.Observe(d.Seconds())
	if result == resultOK {
		m.lastSuccess.Set(float64(at.Unix()))
	}
}

func (m *Metrics) account(step, outcome string) {
	if m == nil {
		return
	}
	m.accounts.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) backup(n int) {
	if m == nil {
		return
	}
	m.backedUp.Add(float64(n))
}
