package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sprintsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sprintd",
		Subsystem: "engine",
		Name:      "sprints_total",
		Help:      "Finished sprints by terminal phase.",
	}, []string{"phase"})

	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sprintd",
		Subsystem: "engine",
		Name:      "turns_total",
		Help:      "Executed turns by phase.",
	}, []string{"phase"})

	phaseGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sprintd",
		Subsystem: "engine",
		Name:      "phase",
		Help:      "Current phase of the active sprint (1 = active).",
	}, []string{"phase"})

	sprintReward = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sprintd",
		Subsystem: "engine",
		Name:      "sprint_reward",
		Help:      "Total reward of the most recently finished sprint.",
	})
)

func observePhase(p Phase) {
	for _, phase := range []Phase{PhasePlanning, PhaseCoding, PhaseTesting, PhaseReviewing, PhaseCompleted, PhaseFailed} {
		v := 0.0
		if phase == p {
			v = 1
		}
		phaseGauge.WithLabelValues(string(phase)).Set(v)
	}
}
