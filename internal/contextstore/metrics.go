package contextstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chunksUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sprintd",
		Subsystem: "contextstore",
		Name:      "chunks_upserted_total",
		Help:      "Chunks embedded and written to the vector store.",
	})

	queriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sprintd",
		Subsystem: "contextstore",
		Name:      "queries_total",
		Help:      "Retrieval queries served.",
	})
)
