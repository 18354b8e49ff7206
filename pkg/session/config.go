package session

import (
	"log/slog"
	"time"
)

// Config holds session connection settings.
type Config struct {
	// URL is the WebSocket endpoint of the conversation service.
	URL string

	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration

	// ReadTimeout bounds each read from the connection. The service sends
	// traffic only while a reply is in flight, so this must comfortably
	// exceed the longest expected think time.
	ReadTimeout time.Duration

	// Logger receives session logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns sensible connection defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      5 * time.Minute,
	}
}

// Option configures a Session.
type Option func(*Config)

// Apply applies the options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithURL sets the service endpoint.
func WithURL(url string) Option {
	return func(c *Config) { c.URL = url }
}

// WithHandshakeTimeout sets the dial timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) { c.HandshakeTimeout = d }
}

// WithReadTimeout sets the per-read deadline.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReadTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
