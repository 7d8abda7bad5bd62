package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers issuance and QR dispatch.
type Metrics struct {
	CredentialsIssued  prometheus.Counter
	IssuanceRejected   *prometheus.CounterVec
	SignSeconds        prometheus.Histogram
	QRDispatched       prometheus.Counter
	QRDispatchFailures prometheus.Counter
	DispatchBatchSize  prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credify_credentials_issued_total",
			Help: "Total number of credential tokens signed",
		}),
		IssuanceRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credify_credentials_rejected_total",
			Help: "Issuance requests rejected, by reason",
		}, []string{"reason"}),
		SignSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credify_credential_sign_duration_seconds",
			Help:    "Duration of key decryption plus ES256 signing",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		QRDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credify_credential_qr_sent_total",
			Help: "Credential QR emails delivered to the mail relay",
		}),
		QRDispatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credify_credential_qr_failed_total",
			Help: "Credential QR emails that could not be sent",
		}),
		DispatchBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credify_credential_qr_batch_size",
			Help:    "Number of holders addressed by one dispatch request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		}),
	}
}
