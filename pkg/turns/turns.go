// Package turns keeps the append-only record of a conversation: one entry per
// completed exchange, pairing what the user said with what the assistant
// replied.
package turns

import (
	"sync"
	"time"
)

// Turn is one completed exchange.
type Turn struct {
	// Seq is the 1-based position of the turn in the conversation.
	Seq int
	// UserText is the transcription of the user's utterance.
	UserText string
	// AssistantText is the assistant's reply.
	AssistantText string
	// At is when the turn was recorded locally.
	At time.Time
}

// Log is an append-only conversation history. Entries are never mutated or
// removed once appended. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	entries  []Turn
	onAppend func(Turn)
}

// NewLog returns an empty conversation log.
func NewLog() *Log {
	return &Log{}
}

// OnAppend registers an observer invoked for every appended turn, outside the
// log's lock. Only one observer is kept; a later call replaces the earlier.
func (l *Log) OnAppend(fn func(Turn)) {
	l.mu.Lock()
	l.onAppend = fn
	l.mu.Unlock()
}

// Append records a completed exchange and returns it with its sequence number
// and timestamp filled in.
func (l *Log) Append(userText, assistantText string) Turn {
	l.mu.Lock()
	t := Turn{
		Seq:           len(l.entries) + 1,
		UserText:      userText,
		AssistantText: assistantText,
		At:            time.Now(),
	}
	l.entries = append(l.entries, t)
	fn := l.onAppend
	l.mu.Unlock()

	if fn != nil {
		fn(t)
	}
	return t
}

// Len returns the number of recorded turns.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot returns a copy of the history in append order.
func (l *Log) Snapshot() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Turn, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last returns the most recent turn and true, or a zero Turn and false when
// the log is empty.
func (l *Log) Last() (Turn, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Turn{}, false
	}
	return l.entries[len(l.entries)-1], true
}
