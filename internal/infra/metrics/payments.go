package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		attemptsTotal,
		outcomesTotal,
		revenueTotal,
	)
}

var (
	attemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_attempts_total",
			Help: "Checkout attempts started.",
		},
	)

	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_outcomes_total",
			Help: "Terminal checkout outcomes by kind (granted/failed/cancelled).",
		},
		[]string{"kind"},
	)

	revenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_revenue_total",
			Help: "Total minor-unit value of granted checkouts, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncAttempt() {
	attemptsTotal.Inc()
}

func IncOutcome(kind string) {
	outcomesTotal.WithLabelValues(norm(kind)).Inc()
}

func AddRevenue(currency string, amountMinorUnits int64) {
	revenueTotal.WithLabelValues(norm(currency)).Add(float64(amountMinorUnits))
}
