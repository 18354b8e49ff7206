package main

import (
	"fmt"

	opus "gopkg.in/hraban/opus.v2"

	"github.com/voiceloop/voiceloop/pkg/audioio"
	"github.com/voiceloop/voiceloop/pkg/playback/opusout"
)

const (
	captureRate = 16000
	replyRate   = 48000

	// 20ms Opus frames at 48kHz.
	frameSamples = 960

	// 25 frames per chunk = 500ms of audio.
	framesPerChunk = 25

	maxPacketBytes = 4000
)

// replyEncoder turns a 16kHz utterance into the chunked Opus stream the
// client expects: the audio is resampled to 48kHz and split into framed
// packets, half a second per chunk.
type replyEncoder struct {
	enc *opus.Encoder
}

func newReplyEncoder() (*replyEncoder, error) {
	enc, err := opus.NewEncoder(replyRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	return &replyEncoder{enc: enc}, nil
}

// encodeReply encodes the utterance as the reply stream.
func (r *replyEncoder) encodeReply(samples []float32) ([][]byte, error) {
	pcm := audioio.Resample(samples, captureRate, replyRate)

	// Pad to a whole frame so the tail is not dropped.
	if rem := len(pcm) % frameSamples; rem != 0 {
		pcm = append(pcm, make([]float32, frameSamples-rem)...)
	}

	var (
		chunks  [][]byte
		chunk   []byte
		frames  int
		packet  = make([]byte, maxPacketBytes)
	)

	for off := 0; off < len(pcm); off += frameSamples {
		n, err := r.enc.EncodeFloat32(pcm[off:off+frameSamples], packet)
		if err != nil {
			return nil, fmt.Errorf("encode frame at %d: %w", off, err)
		}

		chunk = opusout.AppendPacket(chunk, packet[:n])
		frames++

		if frames == framesPerChunk {
			chunks = append(chunks, chunk)
			chunk = nil
			frames = 0
		}
	}
	if len(chunk) > 0 {
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}
