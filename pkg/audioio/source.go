package audioio

import (
	"context"
	"encoding/binary"
	"io"
	"math"
)

// Frame is one block of captured or playable audio.
// Samples are 32-bit float PCM, interleaved when multi-channel.
type Frame struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the playable duration of this frame.
func (f *Frame) Duration() float64 {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	return float64(len(f.Samples)) / float64(f.SampleRate*f.Channels)
}

// Bytes returns the frame as raw little-endian float32 bytes, the outbound
// wire format of the duplex session.
func (f *Frame) Bytes() []byte {
	return EncodeFloat32LE(f.Samples)
}

// EncodeFloat32LE packs samples as little-endian IEEE-754 floats.
func EncodeFloat32LE(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

// DecodeFloat32LE unpacks little-endian IEEE-754 floats. Trailing bytes that
// do not form a full sample are ignored.
func DecodeFloat32LE(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture.
	// After calling Start, frames are available via Read or Stream.
	Start(ctx context.Context) error

	// Stop halts audio capture.
	// It is safe to call Stop multiple times.
	Stop() error

	// Read reads the next frame, blocking if necessary.
	// Returns io.EOF when the source is stopped.
	Read(ctx context.Context) (Frame, error)

	// Stream returns a channel that receives captured frames.
	// The channel is closed when the source is stopped.
	Stream() <-chan Frame

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "malgo", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}
