package policy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	explorationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sprintd",
		Subsystem: "policy",
		Name:      "selections_total",
		Help:      "Action selections by mode (explore vs exploit).",
	}, []string{"mode"})

	rewardObserved = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sprintd",
		Subsystem: "policy",
		Name:      "reward",
		Help:      "Per-turn composite reward.",
		Buckets:   prometheus.LinearBuckets(-1, 0.25, 9),
	})

	epsilonGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sprintd",
		Subsystem: "policy",
		Name:      "epsilon",
		Help:      "Live exploration rate after outer-loop adjustment.",
	})

	alphaGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sprintd",
		Subsystem: "policy",
		Name:      "alpha",
		Help:      "Live learning rate after outer-loop adjustment.",
	})
)
