package app

import (
	"fmt"

	"github.com/voiceloop/voiceloop/pkg/audioio"
	"github.com/voiceloop/voiceloop/pkg/playback"
	"github.com/voiceloop/voiceloop/pkg/vad"
)

// Config holds everything the client needs to run.
type Config struct {
	// ServerURL is the WebSocket endpoint of the conversation service.
	ServerURL string

	// Capture configures the microphone side: 16kHz mono frames.
	Capture audioio.Config

	// Playback configures the speaker side: 48kHz mono.
	Playback audioio.Config

	// Scheduler is the playback scheduling policy.
	Scheduler playback.Config

	// VAD tunes the voice activity detector.
	VAD vad.EnergyConfig

	// MetricsAddr, when non-empty, serves Prometheus metrics on that
	// address.
	MetricsAddr string
}

// DefaultConfig returns a runnable default configuration.
func DefaultConfig() Config {
	return Config{
		Capture:   audioio.DefaultConfig(),
		Playback:  audioio.DefaultPlaybackConfig(),
		Scheduler: playback.DefaultConfig(),
		VAD:       vad.DefaultEnergyConfig(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("app: server URL is required")
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("app: capture config: %w", err)
	}
	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("app: playback config: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("app: scheduler config: %w", err)
	}
	return nil
}
