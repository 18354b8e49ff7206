package vad

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/voiceloop/voiceloop/pkg/audioio"
)

// ErrDetectorClosed is returned by Start after Close.
var ErrDetectorClosed = errors.New("vad: detector is closed")

// EnergyConfig tunes the RMS detector. Thresholds are RMS levels in the
// [0,1] float sample domain; hysteresis (separate start/stop thresholds)
// avoids flickering at the boundary.
type EnergyConfig struct {
	// SpeechThreshold is the RMS level at which speech may start.
	SpeechThreshold float64

	// SilenceThreshold is the RMS level below which speech may end.
	SilenceThreshold float64

	// StartFrames is the number of consecutive loud frames to open a segment.
	StartFrames int

	// HangoverFrames is the number of consecutive quiet frames to close it.
	HangoverFrames int

	// PreRollFrames of audio preceding the trigger are included in the
	// segment so the first syllable is not clipped.
	PreRollFrames int

	// MaxSegmentFrames caps a single utterance; 0 disables the cap.
	MaxSegmentFrames int
}

// DefaultEnergyConfig returns thresholds suited to 16kHz 20ms frames.
func DefaultEnergyConfig() EnergyConfig {
	return EnergyConfig{
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		StartFrames:      3,   // ~60ms to start
		HangoverFrames:   30,  // ~600ms of silence to end
		PreRollFrames:    10,  // ~200ms pre-roll
		MaxSegmentFrames: 1500, // ~30s
	}
}

// Energy is an RMS-energy Detector reading frames from an audioio.Source.
type Energy struct {
	cfg    EnergyConfig
	src    audioio.Source
	cb     Callbacks
	logger *slog.Logger

	mu        sync.Mutex
	listening bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}

	// Segmentation state, touched only by the read loop.
	inSpeech     bool
	speechCount  int
	silenceCount int
	preRoll      [][]float32
	segment      []float32
}

// NewEnergy creates an energy detector over the given source.
func NewEnergy(cfg EnergyConfig, src audioio.Source, cb Callbacks, logger *slog.Logger) *Energy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Energy{
		cfg:    cfg,
		src:    src,
		cb:     cb,
		logger: logger.With("component", "vad.energy"),
	}
}

// Start begins capture and segmentation.
func (e *Energy) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrDetectorClosed
	}
	if e.listening {
		return nil
	}

	if err := e.src.Start(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.listening = true
	e.resetState()

	go e.readLoop(loopCtx)

	e.logger.Info("listening started", "backend", e.src.Name())
	return nil
}

// Pause stops capture. Any partially accumulated segment is discarded.
func (e *Energy) Pause() error {
	e.mu.Lock()
	if !e.listening {
		e.mu.Unlock()
		return nil
	}
	e.listening = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	_ = e.src.Stop()
	<-done

	e.logger.Info("listening paused")
	return nil
}

// Close pauses and releases the source.
func (e *Energy) Close() error {
	if err := e.Pause(); err != nil {
		return err
	}
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return e.src.Close()
}

func (e *Energy) readLoop(ctx context.Context) {
	defer close(e.done)

	for {
		frame, err := e.src.Read(ctx)
		if err != nil {
			// EOF and context cancellation both mean the source stopped.
			if ctx.Err() == nil && !errors.Is(err, io.EOF) && e.cb.OnError != nil {
				e.cb.OnError(err)
			}
			return
		}
		e.processFrame(frame.Samples)
	}
}

func (e *Energy) processFrame(samples []float32) {
	level := rms(samples)

	if !e.inSpeech {
		e.pushPreRoll(samples)
		if level >= e.cfg.SpeechThreshold {
			e.speechCount++
			if e.speechCount >= e.cfg.StartFrames {
				e.openSegment()
			}
		} else {
			e.speechCount = 0
		}
		return
	}

	e.segment = append(e.segment, samples...)

	if level < e.cfg.SilenceThreshold {
		e.silenceCount++
		if e.silenceCount >= e.cfg.HangoverFrames {
			e.closeSegment()
			return
		}
	} else {
		e.silenceCount = 0
	}

	if e.cfg.MaxSegmentFrames > 0 {
		e.speechCount++
		if e.speechCount >= e.cfg.MaxSegmentFrames {
			e.closeSegment()
		}
	}
}

func (e *Energy) openSegment() {
	e.inSpeech = true
	e.speechCount = 0 // reused as the segment frame counter while in speech
	e.silenceCount = 0

	// Seed the segment with pre-roll so the first syllable survives.
	e.segment = e.segment[:0]
	for _, f := range e.preRoll {
		e.segment = append(e.segment, f...)
	}
	e.preRoll = e.preRoll[:0]

	if e.cb.OnSpeechStart != nil {
		e.cb.OnSpeechStart()
	}
}

func (e *Energy) closeSegment() {
	out := make([]float32, len(e.segment))
	copy(out, e.segment)
	e.resetState()

	e.logger.Debug("speech segment closed", "samples", len(out))
	if e.cb.OnSpeechEnd != nil {
		e.cb.OnSpeechEnd(out)
	}
}

func (e *Energy) pushPreRoll(samples []float32) {
	if e.cfg.PreRollFrames <= 0 {
		return
	}
	buf := make([]float32, len(samples))
	copy(buf, samples)
	e.preRoll = append(e.preRoll, buf)
	if len(e.preRoll) > e.cfg.PreRollFrames {
		e.preRoll = e.preRoll[1:]
	}
}

func (e *Energy) resetState() {
	e.inSpeech = false
	e.speechCount = 0
	e.silenceCount = 0
	e.preRoll = e.preRoll[:0]
	e.segment = e.segment[:0]
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

var _ Detector = (*Energy)(nil)
