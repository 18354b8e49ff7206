package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voiceloop/voiceloop/pkg/audioio"
	"github.com/voiceloop/voiceloop/pkg/playback"
)

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.ServerURL = url
	cfg.Capture.Backend = audioio.BackendMock
	cfg.Playback.Backend = audioio.BackendMock
	return cfg
}

func loopbackService(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestNewRejectsMissingURL(t *testing.T) {
	if _, err := New(testConfig("")); err == nil {
		t.Fatal("expected error for missing server URL")
	}
}

func TestInitBuildsComponents(t *testing.T) {
	srv := loopbackService(t)
	defer srv.Close()

	cfg := testConfig("ws" + strings.TrimPrefix(srv.URL, "http"))
	a, err := New(cfg, WithOutput(playback.NewMockOutput()))
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if err := a.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if a.History() == nil {
		t.Error("expected conversation history")
	}
}

func TestRunUntilCancelled(t *testing.T) {
	srv := loopbackService(t)
	defer srv.Close()

	cfg := testConfig("ws" + strings.TrimPrefix(srv.URL, "http"))
	a, err := New(cfg, WithOutput(playback.NewMockOutput()))
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if err := a.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Give the components a moment to come up, then stop.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			t.Errorf("run returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRunWithoutInit(t *testing.T) {
	a, err := New(testConfig("ws://127.0.0.1:1/ws"))
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if err := a.Run(context.Background()); err == nil {
		t.Fatal("expected error when Run precedes Init")
	}
}
