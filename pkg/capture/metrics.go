package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSpeechStarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_speech_starts_total",
		Help: "Speech segments opened by the voice activity detector.",
	})

	metricUtterances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_utterances_sent_total",
		Help: "Finished utterances handed to the session.",
	})

	metricUtteranceSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_utterance_samples_total",
		Help: "Total samples across all sent utterances.",
	})

	metricSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_send_failures_total",
		Help: "Utterances lost because the session rejected them.",
	})
)
