package playback

import (
	"errors"
	"sync"
	"time"
)

// MockBuffer is a Buffer with a fixed duration, for tests.
type MockBuffer struct {
	Dur  time.Duration
	Data []byte
}

// Duration returns the buffer's duration.
func (b *MockBuffer) Duration() time.Duration { return b.Dur }

// MockPlay records one Play call observed by the MockOutput.
type MockPlay struct {
	Buf    Buffer
	Start  time.Duration
	Handle *MockHandle
}

// MockHandle is a Handle that records stop requests.
type MockHandle struct {
	mu      sync.Mutex
	stopped bool
}

// Stop marks the handle stopped.
func (h *MockHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	return nil
}

// Stopped reports whether Stop was called.
func (h *MockHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// MockOutput is an Output with a manually advanced clock.
//
// Decode treats each chunk as valid with ChunkDuration unless DecodeErrFor
// reports otherwise. Play never blocks; FireDone simulates the device
// reporting a finished buffer.
type MockOutput struct {
	// ChunkDuration is the duration Decode assigns to every buffer.
	ChunkDuration time.Duration

	// DecodeErrFor, when set, is consulted per chunk to simulate corrupt input.
	DecodeErrFor func(data []byte) error

	// PlayErr, when non-nil, is returned by the next Play calls.
	PlayErr error

	mu     sync.Mutex
	now    time.Duration
	plays  []MockPlay
	onDone func()
}

// NewMockOutput creates a mock output with 500ms chunks.
func NewMockOutput() *MockOutput {
	return &MockOutput{ChunkDuration: 500 * time.Millisecond}
}

// Decode returns a MockBuffer, or the configured error for this chunk.
func (o *MockOutput) Decode(data []byte) (Buffer, error) {
	if o.DecodeErrFor != nil {
		if err := o.DecodeErrFor(data); err != nil {
			return nil, err
		}
	}
	if len(data) == 0 {
		return nil, errors.New("mock: empty chunk")
	}
	return &MockBuffer{Dur: o.ChunkDuration, Data: data}, nil
}

// Play records the call and returns a fresh handle.
func (o *MockOutput) Play(buf Buffer, start time.Duration) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.PlayErr != nil {
		return nil, o.PlayErr
	}
	h := &MockHandle{}
	o.plays = append(o.plays, MockPlay{Buf: buf, Start: start, Handle: h})
	return h, nil
}

// Now returns the mock clock.
func (o *MockOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

// Advance moves the mock clock forward.
func (o *MockOutput) Advance(d time.Duration) {
	o.mu.Lock()
	o.now += d
	o.mu.Unlock()
}

// OnPlaybackDone registers the completion callback.
func (o *MockOutput) OnPlaybackDone(fn func()) {
	o.mu.Lock()
	o.onDone = fn
	o.mu.Unlock()
}

// FireDone simulates the device reporting a finished buffer.
func (o *MockOutput) FireDone() {
	o.mu.Lock()
	fn := o.onDone
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Plays returns a copy of all recorded Play calls.
func (o *MockOutput) Plays() []MockPlay {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]MockPlay, len(o.plays))
	copy(out, o.plays)
	return out
}

var (
	_ Output       = (*MockOutput)(nil)
	_ DoneNotifier = (*MockOutput)(nil)
)
