// Package config provides configuration helpers for voiceloop commands.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults for the client and the dev server.
const (
	DefaultServerURL   = "ws://127.0.0.1:8000/ws"
	DefaultDevPort     = "8000"
	DefaultMetricsAddr = ""
)

// ServerURL returns the conversation service URL from VOICELOOP_URL.
// Falls back to the provided default if not set.
func ServerURL(defaultURL string) string {
	if u := os.Getenv("VOICELOOP_URL"); u != "" {
		return u
	}
	if defaultURL != "" {
		return defaultURL
	}
	return DefaultServerURL
}

// LogLevel returns the log level from VOICELOOP_LOG_LEVEL or "info".
func LogLevel() string {
	if lvl := os.Getenv("VOICELOOP_LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

// DevPort returns the dev server port from VOICELOOP_DEV_PORT or the default.
func DevPort() string {
	if p := os.Getenv("VOICELOOP_DEV_PORT"); p != "" {
		return p
	}
	return DefaultDevPort
}

// MetricsAddr returns the Prometheus listen address from VOICELOOP_METRICS_ADDR.
// Empty means metrics exposition is disabled.
func MetricsAddr() string {
	return os.Getenv("VOICELOOP_METRICS_ADDR")
}

// IntEnv returns the integer value of an env var, or the default when unset.
// Exits with a usage message on a malformed value, matching the behavior of
// the other required-var helpers.
func IntEnv(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s must be an integer, got %q\n", name, v)
		os.Exit(1)
	}
	return n
}
