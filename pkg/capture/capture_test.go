package capture

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/voiceloop/voiceloop/pkg/audioio"
	"github.com/voiceloop/voiceloop/pkg/vad"
)

// fakeSender records sent payloads.
type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (f *fakeSender) SendAudio(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeSender) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeDetector exposes its callbacks so tests can fire segments by hand.
type fakeDetector struct {
	cb        vad.Callbacks
	startErr  error
	started   int
	paused    int
	closed    int
}

func (f *fakeDetector) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started++
	return nil
}

func (f *fakeDetector) Pause() error { f.paused++; return nil }
func (f *fakeDetector) Close() error { f.closed++; return nil }

func newTestPipeline(t *testing.T, sender Sender, det *fakeDetector, opts ...Option) *Pipeline {
	t.Helper()
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil)
	opts = append(opts, WithDetectorFactory(func(cb vad.Callbacks) vad.Detector {
		det.cb = cb
		return det
	}))
	return New(src, sender, opts...)
}

func TestStartStopLifecycle(t *testing.T) {
	sender := &fakeSender{}
	det := &fakeDetector{}
	p := newTestPipeline(t, sender, det)

	if p.IsListening() {
		t.Error("should not be listening initially")
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !p.IsListening() {
		t.Error("should be listening after Start")
	}

	if err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyListening) {
		t.Errorf("expected ErrAlreadyListening, got %v", err)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("stop must be idempotent, got %v", err)
	}
	if det.paused != 1 {
		t.Errorf("expected 1 pause, got %d", det.paused)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := p.Start(context.Background()); !errors.Is(err, ErrPipelineClosed) {
		t.Errorf("expected ErrPipelineClosed after Close, got %v", err)
	}
}

func TestStartDeviceUnavailable(t *testing.T) {
	sender := &fakeSender{}
	det := &fakeDetector{startErr: errors.New("no such device")}
	p := newTestPipeline(t, sender, det)

	err := p.Start(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if p.IsListening() {
		t.Error("failed start must not leave the pipeline listening")
	}
}

func TestUtteranceEncodedAndSent(t *testing.T) {
	sender := &fakeSender{}
	det := &fakeDetector{}
	p := newTestPipeline(t, sender, det)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	samples := []float32{0, 0.25, -0.5, 1}
	det.cb.OnSpeechEnd(samples)

	sent := sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 sent utterance, got %d", len(sent))
	}
	if len(sent[0]) != 4*len(samples) {
		t.Errorf("expected %d bytes, got %d", 4*len(samples), len(sent[0]))
	}

	decoded := audioio.DecodeFloat32LE(sent[0])
	for i, want := range samples {
		if decoded[i] != want {
			t.Errorf("sample %d: got %v, want %v", i, decoded[i], want)
		}
	}
}

func TestSendFailureKeepsListening(t *testing.T) {
	sender := &fakeSender{err: errors.New("not connected")}
	det := &fakeDetector{}

	var sendErrs []error
	p := newTestPipeline(t, sender, det, WithObservers(Observers{
		OnSendError: func(err error) { sendErrs = append(sendErrs, err) },
	}))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	det.cb.OnSpeechEnd([]float32{0.1, 0.2})

	if len(sendErrs) != 1 {
		t.Fatalf("expected 1 observed send error, got %d", len(sendErrs))
	}
	if !p.IsListening() {
		t.Error("send failure must not stop the pipeline")
	}
}

func TestObserversFire(t *testing.T) {
	sender := &fakeSender{}
	det := &fakeDetector{}

	var starts, sentCounts []int
	p := newTestPipeline(t, sender, det, WithObservers(Observers{
		OnSpeechStart:   func() { starts = append(starts, 1) },
		OnUtteranceSent: func(n int) { sentCounts = append(sentCounts, n) },
	}))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	det.cb.OnSpeechStart()
	det.cb.OnSpeechEnd([]float32{0.1, 0.2, 0.3})

	if len(starts) != 1 {
		t.Errorf("expected 1 speech start, got %d", len(starts))
	}
	if len(sentCounts) != 1 || sentCounts[0] != 3 {
		t.Errorf("expected sent count [3], got %v", sentCounts)
	}
}
