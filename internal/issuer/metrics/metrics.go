package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for issuer key management.
type Metrics struct {
	IssuersCreated      prometheus.Counter
	KeyDecryptFailures  prometheus.Counter
	CreateIssuerSeconds prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		IssuersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credify_issuers_created_total",
			Help: "Total number of issuers created with a keypair",
		}),
		KeyDecryptFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credify_issuer_key_decrypt_failures_total",
			Help: "Private key decryptions rejected by the master key",
		}),
		CreateIssuerSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credify_create_issuer_duration_seconds",
			Help:    "Duration of issuer creation including P-256 key generation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}
