package turns

import (
	"sync"
	"testing"
)

func TestAppendAssignsSequence(t *testing.T) {
	log := NewLog()

	first := log.Append("hello", "hi there")
	second := log.Append("how are you", "doing well")

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("expected sequence 1,2 got %d,%d", first.Seq, second.Seq)
	}
	if first.At.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if log.Len() != 2 {
		t.Errorf("expected 2 turns, got %d", log.Len())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	log := NewLog()
	log.Append("a", "b")

	snap := log.Snapshot()
	snap[0].UserText = "mutated"

	again := log.Snapshot()
	if again[0].UserText != "a" {
		t.Errorf("snapshot mutation leaked into the log: %q", again[0].UserText)
	}
}

func TestLast(t *testing.T) {
	log := NewLog()

	if _, ok := log.Last(); ok {
		t.Error("expected no last turn on empty log")
	}

	log.Append("first", "one")
	log.Append("second", "two")

	last, ok := log.Last()
	if !ok || last.UserText != "second" {
		t.Errorf("expected last turn %q, got %q (ok=%v)", "second", last.UserText, ok)
	}
}

func TestOnAppendObserver(t *testing.T) {
	log := NewLog()

	var got []Turn
	log.OnAppend(func(tn Turn) { got = append(got, tn) })

	log.Append("question", "answer")

	if len(got) != 1 {
		t.Fatalf("expected 1 observed turn, got %d", len(got))
	}
	if got[0].UserText != "question" || got[0].AssistantText != "answer" {
		t.Errorf("observer received wrong turn: %+v", got[0])
	}
}

func TestConcurrentAppends(t *testing.T) {
	log := NewLog()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Append("u", "a")
		}()
	}
	wg.Wait()

	if log.Len() != 20 {
		t.Fatalf("expected 20 turns, got %d", log.Len())
	}

	seen := make(map[int]bool)
	for _, tn := range log.Snapshot() {
		if seen[tn.Seq] {
			t.Errorf("duplicate sequence %d", tn.Seq)
		}
		seen[tn.Seq] = true
	}
}
