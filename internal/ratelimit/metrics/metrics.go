package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected       *prometheus.CounterVec
	StoreErrors    prometheus.Counter
	FallbackActive prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credify_ratelimit_rejected_total",
			Help: "Requests rejected by rate limiting, by endpoint class and key dimension",
		}, []string{"class", "dimension"}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credify_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed against the primary store",
		}),
		FallbackActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "credify_ratelimit_fallback_active",
			Help: "1 while rate limiting is served from the in-memory fallback",
		}),
	}
}
