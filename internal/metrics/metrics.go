package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails sent",
		},
	)

	EmailsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_failed_total",
			Help: "Total recipients failed permanently",
		},
	)

	TransientErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transient_send_errors_total",
			Help: "Total transient transport errors",
		},
	)

	Deferrals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_deferrals_total",
			Help: "Total campaign deferrals by reason",
		},
		[]string{"reason"},
	)

	BreakerTrips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total circuit breaker trips",
		},
	)

	RateDenied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_reservations_denied_total",
			Help: "Total hourly rate reservations denied",
		},
	)

	LimiterFailOpen = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limiter_fail_open_total",
			Help: "Total sends allowed because the counter store was unavailable",
		},
	)

	ReconcilerRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_repairs_total",
			Help: "Total reconciler repairs by kind",
		},
		[]string{"kind"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orchestrator_tick_duration_seconds",
			Help:    "Duration of orchestrator ticks",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func Init() {
	prometheus.MustRegister(
		EmailsSent,
		EmailsFailed,
		TransientErrors,
		Deferrals,
		BreakerTrips,
		RateDenied,
		LimiterFailOpen,
		ReconcilerRepairs,
		TickDuration,
	)
}
