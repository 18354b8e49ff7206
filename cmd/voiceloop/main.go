// voiceloop - streaming voice client for a conversational service.
// Captures speech from the microphone, sends it over a duplex WebSocket and
// plays the streamed reply with gapless scheduling and barge-in support.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voiceloop/voiceloop/internal/config"
	"github.com/voiceloop/voiceloop/internal/log"
	"github.com/voiceloop/voiceloop/pkg/app"
	"github.com/voiceloop/voiceloop/pkg/audioio"
)

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := parseFlags()

	log.Init(config.LogLevel())
	logger := log.L()

	a, err := app.New(cfg, app.WithLogger(logger))
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if err := a.Init(); err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		logger.Error("runtime error", "error", err)
		os.Exit(1)
	}
}

func parseFlags() app.Config {
	cfg := app.DefaultConfig()

	url := flag.String("url", "", "Conversation service URL (overrides VOICELOOP_URL)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address (overrides VOICELOOP_METRICS_ADDR)")
	backend := flag.String("audio-backend", string(audioio.BackendMalgo), "Audio backend: malgo, mock")
	device := flag.String("device", "", "Input device identifier (default: system default)")
	minChunks := flag.Int("min-chunks", cfg.Scheduler.MinChunksToStart, "Chunks to buffer before playback starts")
	flag.Parse()

	if *url != "" {
		cfg.ServerURL = *url
	} else {
		cfg.ServerURL = config.ServerURL("")
	}
	cfg.MetricsAddr = *metricsAddr
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = config.MetricsAddr()
	}
	cfg.Capture.Backend = audioio.Backend(*backend)
	cfg.Playback.Backend = audioio.Backend(*backend)
	cfg.Capture.Device = *device
	cfg.Scheduler.MinChunksToStart = *minChunks

	return cfg
}
