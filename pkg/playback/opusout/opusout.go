// Package opusout is the playback output used against the real conversation
// service: chunks arrive as framed Opus packets, are decoded to 48kHz mono
// PCM, and play on an audioio.Sink at the precise start times the scheduler
// commits to.
package opusout

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	opus "gopkg.in/hraban/opus.v2"

	"github.com/voiceloop/voiceloop/pkg/audioio"
	"github.com/voiceloop/voiceloop/pkg/playback"
)

// ErrBadChunk indicates a chunk whose packet framing is corrupt.
var ErrBadChunk = errors.New("opusout: corrupt chunk framing")

const (
	// maxFrameSamples is the largest Opus frame: 120ms at 48kHz.
	maxFrameSamples = 5760
)

// A chunk is a sequence of Opus packets, each prefixed with its length as a
// little-endian uint16. AppendPacket builds chunks; Decode consumes them.

// AppendPacket appends one framed Opus packet to a chunk under construction.
func AppendPacket(chunk, packet []byte) []byte {
	chunk = binary.LittleEndian.AppendUint16(chunk, uint16(len(packet)))
	return append(chunk, packet...)
}

// splitPackets walks a chunk's framing and returns the raw Opus packets.
func splitPackets(chunk []byte) ([][]byte, error) {
	var packets [][]byte
	for len(chunk) > 0 {
		if len(chunk) < 2 {
			return nil, fmt.Errorf("%w: trailing byte", ErrBadChunk)
		}
		n := int(binary.LittleEndian.Uint16(chunk))
		chunk = chunk[2:]
		if n == 0 || n > len(chunk) {
			return nil, fmt.Errorf("%w: packet length %d exceeds remaining %d", ErrBadChunk, n, len(chunk))
		}
		packets = append(packets, chunk[:n])
		chunk = chunk[n:]
	}
	if len(packets) == 0 {
		return nil, fmt.Errorf("%w: empty chunk", ErrBadChunk)
	}
	return packets, nil
}

// pcmBuffer is decoded mono PCM ready for the sink.
type pcmBuffer struct {
	samples    []float32
	sampleRate int
}

// Duration returns the buffer's play time.
func (b *pcmBuffer) Duration() time.Duration {
	return time.Duration(len(b.samples)) * time.Second / time.Duration(b.sampleRate)
}

// handle is one scheduled playback: a start timer that writes the PCM to the
// sink, and a completion timer that reports it finished.
type handle struct {
	out *Output

	mu         sync.Mutex
	startTimer *time.Timer
	doneTimer  *time.Timer
	stopped    bool
}

// Stop cancels the playback. If the buffer already reached the device, the
// sink is flushed; a reset stops every handle, so the flush discards exactly
// the superseded turn.
func (h *handle) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	startPending := h.startTimer != nil && h.startTimer.Stop()
	if h.doneTimer != nil {
		h.doneTimer.Stop()
	}
	h.mu.Unlock()

	if !startPending {
		return h.out.sink.Clear()
	}
	return nil
}

// Output decodes Opus chunks and plays them on an audio sink against a
// monotonic clock that starts at construction.
type Output struct {
	sink   audioio.Sink
	logger *slog.Logger
	epoch  time.Time

	decMu sync.Mutex
	dec   *opus.Decoder

	mu     sync.Mutex
	onDone func()
}

// New creates an Output playing on the given sink. The sink's configured
// sample rate is the decode rate and should be 48000 for Opus.
func New(sink audioio.Sink, logger *slog.Logger) (*Output, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := sink.Config()

	dec, err := opus.NewDecoder(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("opusout: create decoder: %w", err)
	}

	return &Output{
		sink:   sink,
		logger: logger.With("component", "playback.opusout"),
		epoch:  time.Now(),
		dec:    dec,
	}, nil
}

// Decode parses a chunk's packet framing and decodes it to PCM.
func (o *Output) Decode(data []byte) (playback.Buffer, error) {
	packets, err := splitPackets(data)
	if err != nil {
		return nil, err
	}

	o.decMu.Lock()
	defer o.decMu.Unlock()

	cfg := o.sink.Config()
	pcm := make([]float32, 0, len(packets)*maxFrameSamples/4)
	frame := make([]float32, maxFrameSamples*cfg.Channels)

	for i, pkt := range packets {
		n, err := o.dec.DecodeFloat32(pkt, frame)
		if err != nil {
			return nil, fmt.Errorf("opusout: decode packet %d: %w", i, err)
		}
		pcm = append(pcm, frame[:n*cfg.Channels]...)
	}

	return &pcmBuffer{samples: pcm, sampleRate: cfg.SampleRate}, nil
}

// Now returns the output clock: time elapsed since construction.
func (o *Output) Now() time.Duration {
	return time.Since(o.epoch)
}

// Play schedules the buffer to reach the sink at the given clock time.
func (o *Output) Play(buf playback.Buffer, start time.Duration) (playback.Handle, error) {
	pcm, ok := buf.(*pcmBuffer)
	if !ok {
		return nil, fmt.Errorf("opusout: unexpected buffer type %T", buf)
	}

	delay := start - o.Now()
	if delay < 0 {
		delay = 0
	}

	h := &handle{out: o}
	h.mu.Lock()
	h.startTimer = time.AfterFunc(delay, func() { o.deliver(h, pcm, start) })
	h.mu.Unlock()
	return h, nil
}

// OnPlaybackDone registers the completion callback.
func (o *Output) OnPlaybackDone(fn func()) {
	o.mu.Lock()
	o.onDone = fn
	o.mu.Unlock()
}

// deliver writes the PCM to the sink and arms the completion timer.
func (o *Output) deliver(h *handle, pcm *pcmBuffer, start time.Duration) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	frame := audioio.Frame{
		Samples:    pcm.samples,
		SampleRate: pcm.sampleRate,
		Channels:   o.sink.Config().Channels,
	}
	if err := o.sink.Write(context.Background(), frame); err != nil {
		o.logger.Warn("sink rejected buffer", "error", err, "start", start)
		return
	}

	remaining := start + pcm.Duration() - o.Now()
	if remaining < 0 {
		remaining = 0
	}

	h.mu.Lock()
	if !h.stopped {
		h.doneTimer = time.AfterFunc(remaining, o.fireDone)
	}
	h.mu.Unlock()
}

func (o *Output) fireDone() {
	o.mu.Lock()
	fn := o.onDone
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}

var (
	_ playback.Output       = (*Output)(nil)
	_ playback.DoneNotifier = (*Output)(nil)
)
