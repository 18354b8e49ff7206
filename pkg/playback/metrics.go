package playback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricChunksQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playback_chunks_queued_total",
		Help: "Total decoded chunks accepted into the pending queue",
	})

	metricChunksScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playback_chunks_scheduled_total",
		Help: "Total chunks committed to a start time on the output clock",
	})

	metricStaleChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playback_stale_chunks_total",
		Help: "Chunks discarded because their turn was superseded",
	})

	metricStartFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playback_output_start_failures_total",
		Help: "Scheduled chunks the output capability refused to start",
	})

	metricResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playback_turn_resets_total",
		Help: "Barge-in resets of the playback schedule",
	})

	gaugeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playback_queue_depth",
		Help: "Chunks currently awaiting scheduling",
	})
)
