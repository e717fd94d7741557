package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ViewOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "aerie_gateway", Name: "view_operations_total", Help: "View repository operations by outcome (ok, negative, error)."},
		[]string{"operation", "result"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "aerie_gateway", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "aerie_gateway", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(ViewOperations)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
