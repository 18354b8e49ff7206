// Package capture runs the microphone side of the client: a voice activity
// detector segments the input stream into utterances, and each finished
// utterance is encoded and sent upstream over the session.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voiceloop/voiceloop/pkg/audioio"
	"github.com/voiceloop/voiceloop/pkg/vad"
)

// Sentinel errors for the capture package.
var (
	// ErrDeviceUnavailable indicates the input device could not be opened.
	ErrDeviceUnavailable = errors.New("capture: audio device unavailable")

	// ErrAlreadyListening indicates Start was called while listening.
	ErrAlreadyListening = errors.New("capture: already listening")

	// ErrPipelineClosed indicates the pipeline was closed.
	ErrPipelineClosed = errors.New("capture: pipeline is closed")
)

// Sender receives finished utterances. Satisfied by *session.Session.
type Sender interface {
	SendAudio(data []byte) error
}

// Observers are optional side-channel callbacks for UI or logging. They must
// not block; they run on the detector's read loop.
type Observers struct {
	// OnSpeechStart fires when the detector opens a segment.
	OnSpeechStart func()

	// OnUtteranceSent fires after an utterance was handed to the sender,
	// with its sample count.
	OnUtteranceSent func(sampleCount int)

	// OnSendError fires when the sender rejects an utterance. The pipeline
	// keeps listening.
	OnSendError func(err error)
}

// DetectorFactory builds the detector the pipeline listens with. The default
// factory builds a vad.Energy over the pipeline's source.
type DetectorFactory func(cb vad.Callbacks) vad.Detector

// Pipeline owns the input source and its voice activity detector, and
// forwards each detected utterance to the sender as little-endian float32
// samples.
type Pipeline struct {
	logger *slog.Logger
	sender Sender
	det    vad.Detector
	obs    Observers

	mu        sync.Mutex
	listening bool
	closed    bool
}

// Option configures a Pipeline.
type Option func(*pipelineConfig)

type pipelineConfig struct {
	logger    *slog.Logger
	vadConfig vad.EnergyConfig
	factory   DetectorFactory
	observers Observers
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *pipelineConfig) { c.logger = logger }
}

// WithVADConfig overrides the default detector thresholds.
func WithVADConfig(cfg vad.EnergyConfig) Option {
	return func(c *pipelineConfig) { c.vadConfig = cfg }
}

// WithDetectorFactory replaces the default energy detector.
func WithDetectorFactory(f DetectorFactory) Option {
	return func(c *pipelineConfig) { c.factory = f }
}

// WithObservers sets the side-channel callbacks.
func WithObservers(obs Observers) Option {
	return func(c *pipelineConfig) { c.observers = obs }
}

// New creates a capture pipeline over the given source.
func New(src audioio.Source, sender Sender, opts ...Option) *Pipeline {
	cfg := pipelineConfig{
		logger:    slog.Default(),
		vadConfig: vad.DefaultEnergyConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pipeline{
		logger: cfg.logger.With("component", "capture"),
		sender: sender,
		obs:    cfg.observers,
	}

	cb := vad.Callbacks{
		OnSpeechStart: p.speechStarted,
		OnSpeechEnd:   p.utteranceFinished,
		OnError:       p.detectorFailed,
	}
	if cfg.factory != nil {
		p.det = cfg.factory(cb)
	} else {
		p.det = vad.NewEnergy(cfg.vadConfig, src, cb, cfg.logger)
	}
	return p
}

// Start opens the device and begins listening.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPipelineClosed
	}
	if p.listening {
		return ErrAlreadyListening
	}

	if err := p.det.Start(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	p.listening = true
	p.logger.Info("capture started")
	return nil
}

// Stop pauses listening. Safe to call repeatedly.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.listening {
		return nil
	}

	if err := p.det.Pause(); err != nil {
		return fmt.Errorf("capture: pause failed: %w", err)
	}

	p.listening = false
	p.logger.Info("capture stopped")
	return nil
}

// IsListening reports whether the pipeline is currently listening.
func (p *Pipeline) IsListening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listening
}

// Close stops listening and releases the device.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.listening = false
	p.mu.Unlock()

	return p.det.Close()
}

func (p *Pipeline) speechStarted() {
	metricSpeechStarts.Inc()
	p.logger.Debug("speech started")
	if p.obs.OnSpeechStart != nil {
		p.obs.OnSpeechStart()
	}
}

// utteranceFinished forwards one finished utterance upstream. A send failure
// loses this utterance only; the pipeline keeps listening.
func (p *Pipeline) utteranceFinished(samples []float32) {
	data := audioio.EncodeFloat32LE(samples)

	if err := p.sender.SendAudio(data); err != nil {
		metricSendFailures.Inc()
		p.logger.Warn("failed to send utterance", "samples", len(samples), "error", err)
		if p.obs.OnSendError != nil {
			p.obs.OnSendError(err)
		}
		return
	}

	metricUtterances.Inc()
	metricUtteranceSamples.Add(float64(len(samples)))
	p.logger.Debug("utterance sent", "samples", len(samples), "bytes", len(data))
	if p.obs.OnUtteranceSent != nil {
		p.obs.OnUtteranceSent(len(samples))
	}
}

func (p *Pipeline) detectorFailed(err error) {
	p.logger.Error("detector error", "error", err)
}
