// Package vad defines the speech segmentation contract the capture pipeline
// consumes, plus a default energy-based detector.
//
// The interesting part of voice activity detection is the model, and the
// model is deliberately not this package's problem: anything that can call
// OnSpeechStart and OnSpeechEnd with a finite segment can drive the client.
package vad

import "context"

// Callbacks are invoked by a Detector as speech is segmented. OnSpeechEnd
// receives the complete mono float32 sample sequence for one utterance; the
// slice is owned by the receiver. All fields are optional.
type Callbacks struct {
	OnSpeechStart func()
	OnSpeechEnd   func(samples []float32)
	OnError       func(err error)
}

// Detector segments a continuous audio input into finite speech segments.
type Detector interface {
	// Start begins listening. Callbacks fire until Pause or Close.
	Start(ctx context.Context) error

	// Pause stops listening. Safe to call when not listening.
	Pause() error

	// Close releases the underlying input device.
	Close() error
}
