// Package session maintains the duplex WebSocket connection to the
// conversation service. It sends captured audio upstream as binary frames and
// routes the service's replies: JSON control messages drive the playback
// scheduler and the conversation record, binary frames carry encoded audio
// for the current assistant turn.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voiceloop/voiceloop/pkg/playback"
	"github.com/voiceloop/voiceloop/pkg/turns"
)

// ConnectionState represents the session's connection state.
type ConnectionState int

const (
	// StateDisconnected - no connection.
	StateDisconnected ConnectionState = iota
	// StateConnecting - dial in progress.
	StateConnecting
	// StateConnected - connection open, read pump running.
	StateConnected
)

// String returns a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Scheduler is the playback side the session drives. Satisfied by
// *playback.Scheduler.
type Scheduler interface {
	Turn() uuid.UUID
	Enqueue(turn uuid.UUID, buf playback.Buffer) error
	MarkStreamComplete()
	ResetForNewTurn()
}

// Decoder turns an encoded audio chunk into a playable buffer.
type Decoder interface {
	Decode(data []byte) (playback.Buffer, error)
}

// Recorder receives completed exchanges. Satisfied by *turns.Log.
type Recorder interface {
	Append(userText, assistantText string) turns.Turn
}

// Session is a WebSocket client for the conversation service.
type Session struct {
	config  Config
	logger  *slog.Logger
	sched   Scheduler
	decoder Decoder
	record  Recorder

	mu        sync.RWMutex
	conn      *websocket.Conn
	state     ConnectionState
	cancelCtx context.CancelFunc

	// gorilla/websocket allows one concurrent writer per connection.
	writeMu sync.Mutex

	onState        func(ConnectionState)
	onProgress     func(StreamProgress)
	onServiceError func(msg string)

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

// New creates a session bound to a playback scheduler, an audio decoder and a
// conversation record.
func New(sched Scheduler, decoder Decoder, record Recorder, opts ...Option) (*Session, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Session{
		config:  cfg,
		logger:  cfg.Logger.With("component", "session"),
		sched:   sched,
		decoder: decoder,
		record:  record,
		state:   StateDisconnected,
	}, nil
}

// OnState sets the connection state observer.
func (s *Session) OnState(fn func(ConnectionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// OnStreamProgress sets the observer for streaming progress reports.
func (s *Session) OnStreamProgress(fn func(StreamProgress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProgress = fn
}

// OnServiceError sets the observer for service-reported errors. These are
// informational: the session stays up when the service reports a failure.
func (s *Session) OnServiceError(fn func(msg string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onServiceError = fn
}

// Connect dials the conversation service and starts the read pump.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state = StateConnecting
	s.mu.Unlock()
	s.notifyState(StateConnecting)

	dialer := websocket.Dialer{
		HandshakeTimeout: s.config.HandshakeTimeout,
	}

	s.logger.Info("connecting to conversation service", "url", s.config.URL)

	conn, resp, err := dialer.DialContext(ctx, s.config.URL, nil)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		s.notifyState(StateDisconnected)
		if resp != nil {
			return NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return NewConnectionError("dial failed", err, true)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.conn = conn
	s.state = StateConnected
	s.cancelCtx = cancel
	s.mu.Unlock()
	s.notifyState(StateConnected)

	go s.readPump(pumpCtx)

	s.logger.Info("connected to conversation service")
	return nil
}

// Close gracefully closes the connection. Safe to call on a session that
// never connected.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return nil
	}

	if s.cancelCtx != nil {
		s.cancelCtx()
	}

	if s.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		s.conn.Close()
		s.conn = nil
	}

	s.state = StateDisconnected
	s.logger.Info("disconnected from conversation service")
	return nil
}

// IsConnected returns true if the session is connected.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateConnected
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SendAudio sends one captured utterance upstream as a single binary frame of
// little-endian float32 samples.
func (s *Session) SendAudio(data []byte) error {
	s.mu.RLock()
	conn := s.conn
	state := s.state
	s.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		return NewConnectionError("send audio failed", err, true)
	}

	s.messagesSent.Add(1)
	metricAudioSent.Inc()
	metricAudioBytesSent.Add(float64(len(data)))
	s.logger.Debug("sent audio", "bytes", len(data))
	return nil
}

// readPump reads frames until the connection drops or the context is
// cancelled. Binary frames are audio for the turn current at arrival time;
// text frames are control messages.
func (s *Session) readPump(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		changed := s.state == StateConnected
		if changed {
			s.state = StateDisconnected
		}
		s.mu.Unlock()
		if changed {
			s.notifyState(StateDisconnected)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()

		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("connection closed normally")
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("read error", "error", err)
			return
		}

		s.messagesReceived.Add(1)

		switch msgType {
		case websocket.BinaryMessage:
			s.handleChunk(data)
		case websocket.TextMessage:
			s.handleControl(data)
		default:
			s.logger.Debug("ignoring frame", "message_type", msgType)
		}
	}
}

// handleChunk routes one encoded audio chunk to the scheduler. The chunk is
// tagged with the turn token current when it arrived, so a chunk that crosses
// a barge-in on the wire is discarded instead of playing into the new turn.
func (s *Session) handleChunk(data []byte) {
	metricChunksReceived.Inc()

	turn := s.sched.Turn()

	buf, err := s.decoder.Decode(data)
	if err != nil {
		// A corrupt chunk costs its own duration of audio, nothing more.
		metricDecodeFailures.Inc()
		s.logger.Warn("dropping undecodable chunk", "bytes", len(data), "error", err)
		return
	}

	if err := s.sched.Enqueue(turn, buf); err != nil {
		s.logger.Debug("chunk not queued", "error", err)
	}
}

// handleControl dispatches one JSON control message on (type, status).
func (s *Session) handleControl(data []byte) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		metricMalformedMessages.Inc()
		s.logger.Warn("malformed control message", "bytes", len(data), "error", err)
		return
	}

	if msg.Status == statusError {
		s.logger.Warn("service reported error", "error", msg.Error)
		s.mu.RLock()
		fn := s.onServiceError
		s.mu.RUnlock()
		if fn != nil {
			fn(msg.Error)
		}
		return
	}

	switch {
	case msg.Type == typeConversation && msg.Status == statusProcessing:
		s.beginTurn(msg)

	case msg.Type == typeAudioStream && msg.Status == statusStreaming:
		s.logger.Debug("stream progress",
			"chunk", msg.ChunkNumber,
			"total", msg.TotalChunks,
			"size", msg.ChunkSize,
		)
		s.mu.RLock()
		fn := s.onProgress
		s.mu.RUnlock()
		if fn != nil {
			fn(StreamProgress{
				ChunkNumber: msg.ChunkNumber,
				ChunkSize:   msg.ChunkSize,
				TotalChunks: msg.TotalChunks,
			})
		}

	case msg.Type == typeAudioStream && msg.Status == statusComplete:
		s.logger.Debug("stream complete")
		s.sched.MarkStreamComplete()

	default:
		s.logger.Debug("ignoring control message", "type", msg.Type, "status", msg.Status)
	}
}

// beginTurn handles the start of an assistant reply. The reset comes before
// the record append: whatever was playing belongs to a superseded turn and
// must stop before the new one is acknowledged.
func (s *Session) beginTurn(msg serverMessage) {
	metricTurnsStarted.Inc()
	s.logger.Info("assistant turn started",
		"user_text_len", len(msg.UserText),
		"assistant_text_len", len(msg.AssistantText),
	)

	s.sched.ResetForNewTurn()
	s.record.Append(msg.UserText, msg.AssistantText)
}

// MessagesSent returns the number of frames sent.
func (s *Session) MessagesSent() int64 { return s.messagesSent.Load() }

// MessagesReceived returns the number of frames received.
func (s *Session) MessagesReceived() int64 { return s.messagesReceived.Load() }

func (s *Session) notifyState(st ConnectionState) {
	s.mu.RLock()
	fn := s.onState
	s.mu.RUnlock()
	if fn != nil {
		fn(st)
	}
}

var (
	_ Scheduler = (*playback.Scheduler)(nil)
	_ Recorder  = (*turns.Log)(nil)
)
