package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks one-time code issuance and verification outcomes.
type Metrics struct {
	CodesIssued      prometheus.Counter
	DeliveryFailures prometheus.Counter
	Verifications    *prometheus.CounterVec
	Lockouts         prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credify_otp_issued_total",
			Help: "One-time codes stored and handed to the mailer",
		}),
		DeliveryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credify_otp_delivery_failures_total",
			Help: "One-time codes the mailer failed to send",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credify_otp_verifications_total",
			Help: "Verification attempts by outcome",
		}, []string{"outcome"}),
		Lockouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credify_otp_lockouts_total",
			Help: "Codes discarded after exhausting the attempt budget",
		}),
	}
}
