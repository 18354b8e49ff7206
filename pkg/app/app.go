// Package app wires the voiceloop client together: microphone capture and
// voice activity detection feeding the session, and the session feeding the
// playback scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voiceloop/voiceloop/pkg/audioio"
	"github.com/voiceloop/voiceloop/pkg/capture"
	"github.com/voiceloop/voiceloop/pkg/playback"
	"github.com/voiceloop/voiceloop/pkg/playback/opusout"
	"github.com/voiceloop/voiceloop/pkg/session"
	"github.com/voiceloop/voiceloop/pkg/turns"
)

// App owns the client's components and their lifecycle.
type App struct {
	config Config
	logger *slog.Logger

	source audioio.Source
	sink   audioio.Sink
	output playback.Output

	sched    *playback.Scheduler
	sess     *session.Session
	pipeline *capture.Pipeline
	history  *turns.Log

	metricsSrv *http.Server
}

// Option overrides a component before Init builds the rest.
type Option func(*App)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithSource injects the capture source.
func WithSource(src audioio.Source) Option {
	return func(a *App) { a.source = src }
}

// WithSink injects the playback sink.
func WithSink(sink audioio.Sink) Option {
	return func(a *App) { a.sink = sink }
}

// WithOutput injects the playback output capability.
func WithOutput(out playback.Output) Option {
	return func(a *App) { a.output = out }
}

// New creates the application. Call Init before Run.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "app")
	return a, nil
}

// Init builds every component that was not injected.
func (a *App) Init() error {
	var err error

	if a.source == nil {
		a.source, err = newSource(a.config.Capture, a.logger)
		if err != nil {
			return fmt.Errorf("app: create source: %w", err)
		}
	}

	if a.sink == nil {
		a.sink, err = newSink(a.config.Playback, a.logger)
		if err != nil {
			return fmt.Errorf("app: create sink: %w", err)
		}
	}

	if a.output == nil {
		a.output, err = opusout.New(a.sink, a.logger)
		if err != nil {
			return fmt.Errorf("app: create output: %w", err)
		}
	}

	a.sched, err = playback.New(a.config.Scheduler, a.output,
		playback.WithLogger(a.logger),
		playback.WithStateFunc(func(st playback.State) {
			a.logger.Debug("playback state", "state", st.String())
		}),
	)
	if err != nil {
		return fmt.Errorf("app: create scheduler: %w", err)
	}

	a.history = turns.NewLog()
	a.history.OnAppend(func(t turns.Turn) {
		a.logger.Info("conversation turn",
			"seq", t.Seq,
			"user", t.UserText,
			"assistant", t.AssistantText,
		)
	})

	a.sess, err = session.New(a.sched, a.output, a.history,
		session.WithURL(a.config.ServerURL),
		session.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("app: create session: %w", err)
	}

	a.pipeline = capture.New(a.source, a.sess,
		capture.WithLogger(a.logger),
		capture.WithVADConfig(a.config.VAD),
	)

	return nil
}

// History returns the conversation record.
func (a *App) History() *turns.Log {
	return a.history
}

// Run connects to the service, starts listening and blocks until ctx is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a.sess == nil {
		return fmt.Errorf("app: Init was not called")
	}

	if err := a.sink.Start(ctx); err != nil {
		return fmt.Errorf("app: start playback device: %w", err)
	}

	if err := a.sess.Connect(ctx); err != nil {
		return fmt.Errorf("app: connect session: %w", err)
	}

	if err := a.pipeline.Start(ctx); err != nil {
		_ = a.sess.Close()
		return fmt.Errorf("app: start capture: %w", err)
	}

	a.logger.Info("client running", "url", a.config.ServerURL)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if a.config.MetricsAddr != "" {
		a.metricsSrv = &http.Server{
			Addr:    a.config.MetricsAddr,
			Handler: promhttp.Handler(),
		}
		g.Go(func() error {
			a.logger.Info("metrics listening", "addr", a.config.MetricsAddr)
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return a.metricsSrv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()

	a.Shutdown()
	return err
}

// Shutdown stops the components in dependency order: stop feeding the
// session, silence the output, then tear down the connection and devices.
func (a *App) Shutdown() {
	a.logger.Info("shutting down")

	if a.pipeline != nil {
		if err := a.pipeline.Stop(); err != nil {
			a.logger.Warn("capture stop failed", "error", err)
		}
		if err := a.pipeline.Close(); err != nil {
			a.logger.Warn("capture close failed", "error", err)
		}
	}

	if a.sched != nil {
		a.sched.ResetForNewTurn()
	}

	if a.sess != nil {
		if err := a.sess.Close(); err != nil {
			a.logger.Warn("session close failed", "error", err)
		}
	}

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn("playback device close failed", "error", err)
		}
	}

	a.logger.Info("shutdown complete", "turns", a.history.Len())
}

func newSource(cfg audioio.Config, logger *slog.Logger) (audioio.Source, error) {
	switch cfg.Backend {
	case audioio.BackendMock:
		return audioio.NewMockSource(cfg, logger), nil
	case audioio.BackendMalgo, "":
		return audioio.NewMalgoSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
	}
}

func newSink(cfg audioio.Config, logger *slog.Logger) (audioio.Sink, error) {
	switch cfg.Backend {
	case audioio.BackendMock:
		return audioio.NewMockSink(cfg, logger), nil
	case audioio.BackendMalgo, "":
		return audioio.NewMalgoSink(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
	}
}
