package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricAudioSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_audio_frames_sent_total",
		Help: "Captured utterances sent to the conversation service.",
	})

	metricAudioBytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_audio_bytes_sent_total",
		Help: "Bytes of captured audio sent to the conversation service.",
	})

	metricChunksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_audio_chunks_received_total",
		Help: "Encoded audio chunks received from the conversation service.",
	})

	metricDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_chunk_decode_failures_total",
		Help: "Received audio chunks dropped because decoding failed.",
	})

	metricMalformedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_malformed_messages_total",
		Help: "Control messages dropped because they failed to parse.",
	})

	metricTurnsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_assistant_turns_total",
		Help: "Assistant turns acknowledged by the service.",
	})
)
