// Package metrics exposes the rebalancer's Prometheus series, served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dlmm_rebalancer"

// Ticks counts completed scheduler ticks.
var Ticks = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Total number of completed monitoring ticks",
	},
)

// TickDuration is the wall time of one tick, fetch to last dispatch.
var TickDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "tick_duration_seconds",
		Help:      "Duration of a monitoring tick in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
)

// ActiveSubscriptions is the number of distinct (wallet, pool) polling loops.
var ActiveSubscriptions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "active_subscriptions",
		Help:      "Number of running monitoring loops",
	},
)

// PositionsEvaluated counts positions run through the decision engine.
var PositionsEvaluated = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "positions_evaluated_total",
		Help:      "Total number of position evaluations",
	},
)

// Decisions counts decisions by kind.
var Decisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "decisions_total",
		Help:      "Total number of decisions by kind",
	},
	[]string{"kind"},
)

// Executions counts executor submissions by action and result ("success" or "failure").
var Executions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "executor",
		Name:      "executions_total",
		Help:      "Total number of executor submissions by action and result",
	},
	[]string{"action", "result"},
)

// ProviderErrors counts failed data provider calls by operation.
var ProviderErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "errors_total",
		Help:      "Total number of data provider failures",
	},
	[]string{"operation"},
)

// VolatilityRatio is the latest observed ratio per pool.
var VolatilityRatio = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "volatility_ratio",
		Help:      "Most recent volatility ratio per pool",
	},
	[]string{"pool"},
)

// Result labels an execution outcome.
func Result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
