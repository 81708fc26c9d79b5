package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the scheduler's Prometheus collectors.
type Metrics struct {
	Refreshes    *prometheus.CounterVec
	Deduplicated prometheus.Counter
	Expiry       prometheus.Gauge
}

// NewMetrics registers the collectors with reg. A nil reg leaves them unregistered,
// which is what tests and the CLI use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "elemo",
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Refresh grant attempts by result.",
		}, []string{"result"}),
		Deduplicated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "elemo",
			Subsystem: "session",
			Name:      "refresh_deduplicated_total",
			Help:      "Refresh calls that joined a request already in flight.",
		}),
		Expiry: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "elemo",
			Subsystem: "session",
			Name:      "access_token_expiry_seconds",
			Help:      "Seconds until the access token expires, as of the last scheduling.",
		}),
	}
}
