package recovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sprintd",
		Subsystem: "recovery",
		Name:      "attempts_total",
		Help:      "Recovered operation attempts by class and result.",
	}, []string{"class", "result"})

	strategiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sprintd",
		Subsystem: "recovery",
		Name:      "strategies_total",
		Help:      "Recovery strategies applied by operation class.",
	}, []string{"class", "strategy"})

	breakerStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sprintd",
		Subsystem: "recovery",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per class (0=closed, 1=half-open, 2=open).",
	}, []string{"class"})
)
