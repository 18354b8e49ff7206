package playback

import "time"

// Buffer is one decoded, independently playable audio chunk. Implementations
// own the sample data; the scheduler only needs its playable duration.
type Buffer interface {
	// Duration returns the playable duration of the buffer.
	Duration() time.Duration
}

// Handle refers to one in-flight scheduled playback.
type Handle interface {
	// Stop cancels the playback. Stopping an already finished playback is
	// not an error.
	Stop() error
}

// Output is the audio output capability the scheduler drives. Now is a
// monotonic clock shared with Play's start times; implementations typically
// anchor it to the output device clock.
type Output interface {
	// Decode turns one inbound binary chunk into a playable buffer.
	Decode(data []byte) (Buffer, error)

	// Play schedules the buffer to start at the given clock time.
	// start is never in the past relative to Now at call time.
	Play(buf Buffer, start time.Duration) (Handle, error)

	// Now returns the current time on the output clock.
	Now() time.Duration
}

// DoneNotifier is implemented by outputs that can report when a scheduled
// buffer finishes playing. The scheduler uses it to run a scheduling pass
// immediately instead of waiting for the next tick.
type DoneNotifier interface {
	OnPlaybackDone(fn func())
}
