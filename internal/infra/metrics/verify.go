package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		verifyRequests,
		verifyDuration,
	)
}

var (
	// result: confirmed|rejected|fallback_confirmed|fallback_failed
	// reason (non-confirmed only): rejected|not_success|unreachable|none
	verifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Verification calls by result and bounded reason.",
		},
		[]string{"result", "reason"},
	)

	verifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of one verification call in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)
)

func ObserveVerify(result, reason string, elapsed time.Duration) {
	if reason == "" {
		reason = "none"
	}
	verifyRequests.WithLabelValues(norm(result), norm(reason)).Inc()
	verifyDuration.WithLabelValues(norm(result)).Observe(elapsed.Seconds())
}
