package opusout

import (
	"errors"
	"testing"
	"time"
)

func TestPacketFramingRoundTrip(t *testing.T) {
	packets := [][]byte{
		{0x01},
		{0x02, 0x03, 0x04},
		make([]byte, 300),
	}

	var chunk []byte
	for _, pkt := range packets {
		chunk = AppendPacket(chunk, pkt)
	}

	got, err := splitPackets(chunk)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if len(got) != len(packets) {
		t.Fatalf("expected %d packets, got %d", len(packets), len(got))
	}
	for i := range packets {
		if len(got[i]) != len(packets[i]) {
			t.Errorf("packet %d: length %d, want %d", i, len(got[i]), len(packets[i]))
		}
	}
}

func TestSplitPacketsRejectsCorruptFraming(t *testing.T) {
	cases := []struct {
		name  string
		chunk []byte
	}{
		{"empty", nil},
		{"trailing byte", []byte{0x05}},
		{"length past end", []byte{0x10, 0x00, 0x01}},
		{"zero length", []byte{0x00, 0x00, 0x01}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := splitPackets(tc.chunk); !errors.Is(err, ErrBadChunk) {
				t.Errorf("expected ErrBadChunk, got %v", err)
			}
		})
	}
}

func TestPCMBufferDuration(t *testing.T) {
	b := &pcmBuffer{samples: make([]float32, 24000), sampleRate: 48000}
	if got := b.Duration(); got != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", got)
	}
}
