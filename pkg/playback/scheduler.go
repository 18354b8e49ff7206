// Package playback turns an unevenly arriving stream of decoded audio chunks
// into continuous, gapless playback on a shared output clock, and can cancel
// the whole schedule atomically when a new conversational turn supersedes the
// one being played.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrStaleChunk is returned by Enqueue for a chunk whose turn token no longer
// matches the current turn; the chunk was decoded before a reset and must not
// be heard.
var ErrStaleChunk = errors.New("playback: chunk belongs to a superseded turn")

// State is the scheduler's lifecycle state.
type State int

const (
	// StateIdle - no chunks queued, nothing scheduled.
	StateIdle State = iota
	// StateBuffering - chunks accumulating, count below the start threshold.
	StateBuffering
	// StatePlaying - schedule active.
	StatePlaying
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

type pendingChunk struct {
	turn uuid.UUID
	buf  Buffer
}

type scheduled struct {
	handle Handle
	start  time.Duration
	end    time.Duration
}

// Scheduler is the streaming playback core. All state mutation happens under
// one mutex: the periodic tick, chunk arrival, completion callbacks and
// ResetForNewTurn are serialized with respect to one another.
type Scheduler struct {
	cfg    Config
	out    Output
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	turn       uuid.UUID
	pending    []pendingChunk
	active     []scheduled
	floor      time.Duration // end of the last committed playback
	floorSet   bool
	streamDone bool // no further chunks expected for the current turn

	onState  func(State)
	tick     <-chan time.Time
	notifyMu sync.Mutex
	lastSent State
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithTick injects the tick channel, replacing the internal ticker.
// Used by tests to drive scheduling passes deterministically.
func WithTick(tick <-chan time.Time) Option {
	return func(s *Scheduler) {
		s.tick = tick
	}
}

// WithStateFunc registers an observer for state transitions. The callback
// runs outside the scheduler lock, in arrival order.
func WithStateFunc(fn func(State)) Option {
	return func(s *Scheduler) {
		s.onState = fn
	}
}

// New creates a scheduler over the given output capability.
func New(cfg Config, out Output, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:    cfg,
		out:    out,
		logger: slog.Default(),
		state:  StateIdle,
		turn:   uuid.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "playback")

	if dn, ok := out.(DoneNotifier); ok {
		dn.OnPlaybackDone(s.chunkDone)
	}

	return s, nil
}

// Run drives the periodic scheduling tick until ctx is cancelled. This is the
// only place the scheduler blocks on the clock; everything else returns
// immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	tick := s.tick
	if tick == nil {
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-tick:
			if !ok {
				return nil
			}
			s.mu.Lock()
			s.passLocked()
			st := s.state
			s.mu.Unlock()
			s.notify(st)
		}
	}
}

// Turn returns the token of the current turn. Callers capture it before
// decoding an inbound chunk so a chunk that raced a reset can be identified
// and discarded at Enqueue.
func (s *Scheduler) Turn() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QueueLen returns the number of chunks awaiting scheduling.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// ActiveLen returns the number of playbacks currently committed to the clock.
func (s *Scheduler) ActiveLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Enqueue appends a decoded chunk to the pending queue. When the buffered
// count reaches the start threshold the scheduler transitions to Playing and
// runs a scheduling pass immediately, bounding first-audio latency to the
// arrival of the threshold chunk rather than the next tick.
//
// A chunk whose turn token does not match the current turn is discarded and
// ErrStaleChunk returned.
func (s *Scheduler) Enqueue(turn uuid.UUID, buf Buffer) error {
	s.mu.Lock()

	if turn != s.turn {
		s.mu.Unlock()
		metricStaleChunks.Inc()
		s.logger.Debug("discarded chunk from superseded turn")
		return ErrStaleChunk
	}

	s.pending = append(s.pending, pendingChunk{turn: turn, buf: buf})
	metricChunksQueued.Inc()
	gaugeQueueDepth.Set(float64(len(s.pending)))

	switch s.state {
	case StatePlaying:
		// A completed playback may already be waiting on more input.
		s.passLocked()
	case StateIdle, StateBuffering:
		if len(s.pending) >= s.startThresholdLocked() {
			s.state = StatePlaying
			s.passLocked()
		} else {
			s.state = StateBuffering
		}
	}

	st := s.state
	s.mu.Unlock()
	s.notify(st)
	return nil
}

// MarkStreamComplete records that no further chunks will arrive for the
// current turn. A partially filled buffer is then allowed to drain instead of
// waiting for a start threshold that can never be met.
func (s *Scheduler) MarkStreamComplete() {
	s.mu.Lock()
	s.streamDone = true
	if s.state != StatePlaying && len(s.pending) > 0 {
		s.state = StatePlaying
		s.passLocked()
	}
	st := s.state
	s.mu.Unlock()
	s.notify(st)
}

// ResetForNewTurn atomically cancels the current schedule: every active
// playback receives a stop request (failures to stop an already finished
// source are ignored), the pending queue and active set are cleared, the
// commit floor is unset and a fresh turn token is issued. The scheduler comes
// out Idle, ready for the incoming turn.
func (s *Scheduler) ResetForNewTurn() {
	s.mu.Lock()

	for _, sc := range s.active {
		if err := sc.handle.Stop(); err != nil {
			s.logger.Debug("stop of scheduled playback failed", "error", err)
		}
	}

	dropped := len(s.pending) + len(s.active)
	s.pending = nil
	s.active = nil
	s.floorSet = false
	s.floor = 0
	s.streamDone = false
	s.turn = uuid.New()
	s.state = StateIdle

	metricResets.Inc()
	gaugeQueueDepth.Set(0)
	s.logger.Debug("reset for new turn", "dropped", dropped)

	s.mu.Unlock()
	s.notify(StateIdle)
}

// chunkDone runs when the output reports a finished playback.
func (s *Scheduler) chunkDone() {
	s.mu.Lock()
	if s.state == StatePlaying {
		s.passLocked()
	}
	st := s.state
	s.mu.Unlock()
	s.notify(st)
}

// startThresholdLocked returns the buffered-chunk count that triggers
// playback. Once the stream is complete anything left in the queue is worth
// draining.
func (s *Scheduler) startThresholdLocked() int {
	if s.streamDone {
		return 1
	}
	return s.cfg.MinChunksToStart
}

// passLocked is one scheduling pass: retire finished playbacks, then commit
// queued chunks to precise start times until the lookahead window is full or
// the queue is empty. Each start time is the later of "now" and the end of
// the previously committed chunk, which is what guarantees no overlap and no
// wall-clock-impossible scheduling. Caller holds s.mu.
func (s *Scheduler) passLocked() {
	now := s.out.Now()

	kept := s.active[:0]
	for _, sc := range s.active {
		if sc.end > now {
			kept = append(kept, sc)
		}
	}
	s.active = kept

	for len(s.pending) > 0 {
		committedEnd := now
		if s.floorSet && s.floor > now {
			committedEnd = s.floor
		}
		if committedEnd-now >= s.cfg.Lookahead {
			break
		}

		chunk := s.pending[0]
		s.pending = s.pending[1:]

		start := now
		if s.floorSet && s.floor > start {
			start = s.floor
		}

		handle, err := s.out.Play(chunk.buf, start)
		if err != nil {
			// Skip this chunk and resume on the next tick rather than
			// retrying the same chunk indefinitely.
			metricStartFailures.Inc()
			s.logger.Warn("output refused scheduled chunk", "error", err, "start", start)
			break
		}

		end := start + chunk.buf.Duration()
		s.active = append(s.active, scheduled{handle: handle, start: start, end: end})
		s.floor = end
		s.floorSet = true
		metricChunksScheduled.Inc()
	}

	gaugeQueueDepth.Set(float64(len(s.pending)))

	if s.state == StatePlaying && len(s.pending) == 0 && len(s.active) == 0 {
		s.state = StateIdle
	}
}

// notify reports a state transition to the observer, outside the scheduler
// lock and deduplicated so ticks that change nothing stay silent.
func (s *Scheduler) notify(st State) {
	if s.onState == nil {
		return
	}
	s.notifyMu.Lock()
	if s.lastSent == st {
		s.notifyMu.Unlock()
		return
	}
	s.lastSent = st
	s.notifyMu.Unlock()
	s.onState(st)
}
