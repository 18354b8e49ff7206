package playback

import (
	"fmt"
	"time"
)

// Config holds the scheduler's policy constants.
type Config struct {
	// MinChunksToStart is the number of buffered chunks required before the
	// first playback begins. Starting too eagerly risks starving the
	// schedule as soon as it opens.
	MinChunksToStart int

	// Lookahead is how far ahead of the output clock the scheduler keeps
	// audio committed before it stops scheduling more.
	Lookahead time.Duration

	// TickInterval is how often the scheduler re-evaluates the queue.
	// It bounds the worst-case silence between consecutive chunks.
	TickInterval time.Duration
}

// DefaultConfig returns the policy used by the client.
func DefaultConfig() Config {
	return Config{
		MinChunksToStart: 8,
		Lookahead:        2 * time.Second,
		TickInterval:     50 * time.Millisecond,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.MinChunksToStart <= 0 {
		return fmt.Errorf("min_chunks_to_start must be positive, got %d", c.MinChunksToStart)
	}
	if c.Lookahead <= 0 {
		return fmt.Errorf("lookahead must be positive, got %v", c.Lookahead)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.TickInterval)
	}
	return nil
}
