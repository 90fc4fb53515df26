package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chunksFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventsoundness_chunks_fetched_total",
			Help: "Total number of block-range chunks fetched",
		},
	)

	logsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventsoundness_logs_fetched_total",
			Help: "Total number of logs fetched",
		},
	)
)

func ChunksFetchedInc() {
	chunksFetched.Inc()
}

func LogsFetchedAdd(count int) {
	logsFetched.Add(float64(count))
}
