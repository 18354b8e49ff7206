package audioio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures audio from the default input device via miniaudio.
type MalgoSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	mctx     *malgo.AllocatedContext
	device   *malgo.Device
	streamCh chan Frame
	pending  []float32
}

// NewMalgoSource creates a malgo-backed capture source.
func NewMalgoSource(cfg Config, logger *slog.Logger) (*MalgoSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audioio: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MalgoSource{
		cfg:      cfg,
		logger:   logger.With("component", "audioio.malgo"),
		streamCh: make(chan Frame, 32),
	}, nil
}

// Start opens the capture device and begins streaming frames.
func (s *MalgoSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audioio: malgo init: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(s.cfg.Channels)
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	s.streamCh = make(chan Frame, 32)
	frameSamples := s.cfg.FrameSize() * s.cfg.Channels

	onRecvFrames := func(_, pSample []byte, framecount uint32) {
		if framecount == 0 {
			return
		}
		n := int(framecount) * s.cfg.Channels
		for i := 0; i < n && (i+1)*4 <= len(pSample); i++ {
			s.pending = append(s.pending, float32FromBytes(pSample[i*4:]))
		}
		for len(s.pending) >= frameSamples {
			samples := make([]float32, frameSamples)
			copy(samples, s.pending[:frameSamples])
			s.pending = append(s.pending[:0], s.pending[frameSamples:]...)
			select {
			case s.streamCh <- Frame{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}:
			default:
				// consumer is slow, drop
			}
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("audioio: init capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("audioio: start capture device: %w", err)
	}

	s.mctx = mctx
	s.device = device
	s.running = true

	s.logger.Info("capture started",
		"sample_rate", s.cfg.SampleRate,
		"frame_size", s.cfg.FrameSize(),
	)

	return nil
}

// Stop halts capture and closes the stream channel.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	device, mctx, ch := s.device, s.mctx, s.streamCh
	s.device = nil
	s.mctx = nil
	s.mu.Unlock()

	// Uninit outside the lock; it blocks until the device callback drains.
	device.Uninit()
	_ = mctx.Uninit()
	mctx.Free()

	s.mu.Lock()
	s.pending = nil
	close(ch)
	s.mu.Unlock()

	s.logger.Info("capture stopped")
	return nil
}

// Read reads the next captured frame.
func (s *MalgoSource) Read(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case frame, ok := <-s.streamCh:
		if !ok {
			return Frame{}, io.EOF
		}
		return frame, nil
	}
}

// Stream returns the captured frame channel.
func (s *MalgoSource) Stream() <-chan Frame {
	return s.streamCh
}

// Config returns the audio configuration.
func (s *MalgoSource) Config() Config {
	return s.cfg
}

// Name returns "malgo".
func (s *MalgoSource) Name() string {
	return "malgo"
}

// Close releases all resources.
func (s *MalgoSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

var _ Source = (*MalgoSource)(nil)

// MalgoSink plays audio on the default output device via miniaudio.
// Written frames go into an internal FIFO drained by the device callback;
// underruns play silence.
type MalgoSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	fifo    []float32
}

// NewMalgoSink creates a malgo-backed playback sink.
func NewMalgoSink(cfg Config, logger *slog.Logger) (*MalgoSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audioio: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MalgoSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.malgo"),
	}, nil
}

// Start opens the playback device.
func (s *MalgoSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audioio: malgo init: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(s.cfg.Channels)
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	onSendFrames := func(pOutput, _ []byte, framecount uint32) {
		n := int(framecount) * s.cfg.Channels
		s.mu.Lock()
		for i := 0; i < n && (i+1)*4 <= len(pOutput); i++ {
			var sample float32
			if len(s.fifo) > 0 {
				sample = s.fifo[0]
				s.fifo = s.fifo[1:]
			}
			binary.LittleEndian.PutUint32(pOutput[i*4:], math.Float32bits(sample))
		}
		s.mu.Unlock()
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("audioio: init playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("audioio: start playback device: %w", err)
	}

	s.mctx = mctx
	s.device = device
	s.running = true

	s.logger.Info("playback started", "sample_rate", s.cfg.SampleRate)
	return nil
}

// Stop halts playback.
func (s *MalgoSink) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	device, mctx := s.device, s.mctx
	s.device = nil
	s.mctx = nil
	s.mu.Unlock()

	// Uninit outside the lock; the data callback takes s.mu.
	device.Uninit()
	_ = mctx.Uninit()
	mctx.Free()

	s.mu.Lock()
	s.fifo = nil
	s.mu.Unlock()

	s.logger.Info("playback stopped")
	return nil
}

// Write appends the frame to the playback FIFO. Frames at a different sample
// rate than the device are resampled on the way in.
func (s *MalgoSink) Write(ctx context.Context, frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.running {
		return io.ErrClosedPipe
	}

	samples := frame.Samples
	if frame.SampleRate != 0 && frame.SampleRate != s.cfg.SampleRate {
		samples = Resample(samples, frame.SampleRate, s.cfg.SampleRate)
	}
	s.fifo = append(s.fifo, samples...)
	return nil
}

// Clear discards all buffered audio immediately.
func (s *MalgoSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fifo = s.fifo[:0]
	return nil
}

// Config returns the audio configuration.
func (s *MalgoSink) Config() Config {
	return s.cfg
}

// Name returns "malgo".
func (s *MalgoSink) Name() string {
	return "malgo"
}

// Close releases all resources.
func (s *MalgoSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

var _ Sink = (*MalgoSink)(nil)

func float32FromBytes(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
