package vad

import (
	"testing"
)

func testConfig() EnergyConfig {
	return EnergyConfig{
		SpeechThreshold:  0.5,
		SilenceThreshold: 0.2,
		StartFrames:      2,
		HangoverFrames:   3,
		PreRollFrames:    2,
		MaxSegmentFrames: 100,
	}
}

func loudFrame(n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = 0.9
	}
	return f
}

func quietFrame(n int) []float32 {
	return make([]float32, n)
}

func TestEnergySegmentation(t *testing.T) {
	t.Run("segment opens after start frames", func(t *testing.T) {
		var started int
		e := NewEnergy(testConfig(), nil, Callbacks{
			OnSpeechStart: func() { started++ },
		}, nil)

		e.processFrame(loudFrame(160))
		if started != 0 {
			t.Error("segment opened after a single loud frame")
		}
		e.processFrame(loudFrame(160))
		if started != 1 {
			t.Errorf("expected 1 start after 2 loud frames, got %d", started)
		}
	})

	t.Run("segment closes after hangover and includes pre-roll", func(t *testing.T) {
		var segment []float32
		e := NewEnergy(testConfig(), nil, Callbacks{
			OnSpeechEnd: func(s []float32) { segment = s },
		}, nil)

		// Two quiet pre-roll frames, then speech, then silence.
		e.processFrame(quietFrame(160))
		e.processFrame(quietFrame(160))
		e.processFrame(loudFrame(160))
		e.processFrame(loudFrame(160)) // opens here, pre-roll window holds the 2 loud frames
		e.processFrame(loudFrame(160))
		for i := 0; i < 3; i++ {
			e.processFrame(quietFrame(160))
		}

		if segment == nil {
			t.Fatal("segment never closed")
		}
		// pre-roll window (2 loud) + 1 loud + 3 quiet hangover
		want := 160 * 6
		if len(segment) != want {
			t.Errorf("expected %d samples, got %d", want, len(segment))
		}
	})

	t.Run("brief noise does not open a segment", func(t *testing.T) {
		var started int
		e := NewEnergy(testConfig(), nil, Callbacks{
			OnSpeechStart: func() { started++ },
		}, nil)

		e.processFrame(loudFrame(160))
		e.processFrame(quietFrame(160))
		e.processFrame(loudFrame(160))
		e.processFrame(quietFrame(160))

		if started != 0 {
			t.Errorf("expected no segment, got %d starts", started)
		}
	})

	t.Run("loud blip during hangover keeps segment open", func(t *testing.T) {
		var ended int
		e := NewEnergy(testConfig(), nil, Callbacks{
			OnSpeechEnd: func([]float32) { ended++ },
		}, nil)

		e.processFrame(loudFrame(160))
		e.processFrame(loudFrame(160))
		e.processFrame(quietFrame(160))
		e.processFrame(quietFrame(160))
		e.processFrame(loudFrame(160)) // resets hangover
		e.processFrame(quietFrame(160))
		e.processFrame(quietFrame(160))

		if ended != 0 {
			t.Error("segment closed despite hangover reset")
		}
		e.processFrame(quietFrame(160))
		if ended != 1 {
			t.Errorf("expected segment to close, got %d ends", ended)
		}
	})

	t.Run("max segment cap closes the segment", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxSegmentFrames = 5
		var ended int
		e := NewEnergy(cfg, nil, Callbacks{
			OnSpeechEnd: func([]float32) { ended++ },
		}, nil)

		for i := 0; i < 10; i++ {
			e.processFrame(loudFrame(160))
		}
		if ended == 0 {
			t.Error("expected cap to close the segment")
		}
	})
}

func TestRMS(t *testing.T) {
	if got := rms(nil); got != 0 {
		t.Errorf("rms of empty input should be 0, got %v", got)
	}
	if got := rms([]float32{1, -1, 1, -1}); got != 1 {
		t.Errorf("rms of unit square wave should be 1, got %v", got)
	}
}
