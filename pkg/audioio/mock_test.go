package audioio

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestMockSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameDuration = 5 * time.Millisecond

	t.Run("start and read frames", func(t *testing.T) {
		src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
		defer src.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := src.Start(ctx); err != nil {
			t.Fatalf("start failed: %v", err)
		}

		frame, err := src.Read(ctx)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}

		if len(frame.Samples) != cfg.FrameSize()*cfg.Channels {
			t.Errorf("expected %d samples, got %d", cfg.FrameSize()*cfg.Channels, len(frame.Samples))
		}
		if frame.SampleRate != cfg.SampleRate {
			t.Errorf("expected sample rate %d, got %d", cfg.SampleRate, frame.SampleRate)
		}

		// Sine wave should not be all zero
		var nonZero bool
		for _, s := range frame.Samples {
			if s != 0 {
				nonZero = true
				break
			}
		}
		if !nonZero {
			t.Error("expected sine wave samples, got silence")
		}
	})

	t.Run("read after stop returns EOF", func(t *testing.T) {
		src := NewMockSource(cfg, nil)
		defer src.Close()

		ctx := context.Background()
		if err := src.Start(ctx); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if err := src.Stop(); err != nil {
			t.Fatalf("stop failed: %v", err)
		}

		// Drain anything buffered, then expect EOF
		for {
			_, err := src.Read(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		src := NewMockSource(cfg, nil)
		defer src.Close()

		_ = src.Start(context.Background())
		if err := src.Stop(); err != nil {
			t.Fatalf("first stop failed: %v", err)
		}
		if err := src.Stop(); err != nil {
			t.Fatalf("second stop failed: %v", err)
		}
	})

	t.Run("start after close fails", func(t *testing.T) {
		src := NewMockSource(cfg, nil)
		_ = src.Close()

		if err := src.Start(context.Background()); err == nil {
			t.Error("expected error starting a closed source")
		}
	})
}

func TestMockSink(t *testing.T) {
	cfg := DefaultPlaybackConfig()

	t.Run("write and inspect", func(t *testing.T) {
		sink := NewMockSink(cfg, nil)
		defer sink.Close()

		ctx := context.Background()
		if err := sink.Start(ctx); err != nil {
			t.Fatalf("start failed: %v", err)
		}

		frame := Frame{Samples: make([]float32, 480), SampleRate: cfg.SampleRate, Channels: 1}
		if err := sink.Write(ctx, frame); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		if got := len(sink.Frames()); got != 1 {
			t.Errorf("expected 1 frame buffered, got %d", got)
		}
	})

	t.Run("clear discards buffered audio", func(t *testing.T) {
		sink := NewMockSink(cfg, nil)
		defer sink.Close()

		ctx := context.Background()
		_ = sink.Start(ctx)
		_ = sink.Write(ctx, Frame{Samples: make([]float32, 100), SampleRate: cfg.SampleRate, Channels: 1})

		if err := sink.Clear(); err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		if got := len(sink.Frames()); got != 0 {
			t.Errorf("expected empty buffer after clear, got %d frames", got)
		}
		if sink.ClearCount() != 1 {
			t.Errorf("expected 1 clear, got %d", sink.ClearCount())
		}
	})

	t.Run("write before start fails", func(t *testing.T) {
		sink := NewMockSink(cfg, nil)
		defer sink.Close()

		err := sink.Write(context.Background(), Frame{Samples: []float32{0}})
		if err == nil {
			t.Error("expected error writing before start")
		}
	})
}

func TestFrameCodec(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := []float32{0, 0.5, -0.5, 1, -1, 0.123}
		out := DecodeFloat32LE(EncodeFloat32LE(in))

		if len(out) != len(in) {
			t.Fatalf("expected %d samples, got %d", len(in), len(out))
		}
		for i := range in {
			if out[i] != in[i] {
				t.Errorf("sample %d: expected %v, got %v", i, in[i], out[i])
			}
		}
	})

	t.Run("trailing bytes ignored", func(t *testing.T) {
		data := EncodeFloat32LE([]float32{1, 2})
		data = append(data, 0xAB, 0xCD)
		if got := len(DecodeFloat32LE(data)); got != 2 {
			t.Errorf("expected 2 samples, got %d", got)
		}
	})

	t.Run("frame duration", func(t *testing.T) {
		f := Frame{Samples: make([]float32, 16000), SampleRate: 16000, Channels: 1}
		if d := f.Duration(); d != 1.0 {
			t.Errorf("expected 1s, got %v", d)
		}
	})
}

func TestResample(t *testing.T) {
	t.Run("same rate is a no-op", func(t *testing.T) {
		in := []float32{1, 2, 3}
		out := Resample(in, 16000, 16000)
		if len(out) != 3 {
			t.Fatalf("expected 3 samples, got %d", len(out))
		}
	})

	t.Run("upsample doubles length", func(t *testing.T) {
		in := make([]float32, 160)
		out := Resample(in, 16000, 32000)
		if len(out) != 320 {
			t.Errorf("expected 320 samples, got %d", len(out))
		}
	})

	t.Run("downsample halves length", func(t *testing.T) {
		in := make([]float32, 320)
		out := Resample(in, 32000, 16000)
		if len(out) != 160 {
			t.Errorf("expected 160 samples, got %d", len(out))
		}
	})
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default valid", func(c *Config) {}, false},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"zero channels", func(c *Config) { c.Channels = 0 }, true},
		{"zero frame duration", func(c *Config) { c.FrameDuration = 0 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
