// devserver - a loopback conversation service for developing the voiceloop
// client without the real backend. It accepts utterances over the same duplex
// WebSocket protocol and streams each one back as Opus-encoded audio, so the
// full capture / schedule / playback path can be exercised end to end.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/voiceloop/voiceloop/internal/config"
	"github.com/voiceloop/voiceloop/internal/log"
	"github.com/voiceloop/voiceloop/pkg/audioio"
)

func main() {
	_ = godotenv.Load()
	log.Init(config.LogLevel())
	logger := log.Component("devserver")

	app := fiber.New(fiber.Config{
		AppName:               "voiceloop devserver",
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(handleConversation))

	port := config.DevPort()
	logger.Info("devserver listening", "port", port)
	if err := app.Listen(":" + port); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// handleConversation runs one client connection: every binary frame is an
// utterance of little-endian float32 samples at 16kHz, answered with the
// scripted reply sequence.
func handleConversation(conn *websocket.Conn) {
	logger := log.Component("devserver").With("remote", conn.RemoteAddr().String())
	logger.Info("client connected")
	defer logger.Info("client disconnected")

	enc, err := newReplyEncoder()
	if err != nil {
		logger.Error("encoder init failed", "error", err)
		return
	}

	exchange := 0
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			logger.Debug("ignoring non-binary frame", "type", msgType)
			continue
		}

		samples := audioio.DecodeFloat32LE(data)
		if len(samples) == 0 {
			if err := sendJSON(conn, serverMessage{Status: "error", Error: "empty utterance"}); err != nil {
				return
			}
			continue
		}

		exchange++
		logger.Info("utterance received",
			"exchange", exchange,
			"samples", len(samples),
			"seconds", fmt.Sprintf("%.2f", float64(len(samples))/16000),
		)

		if err := streamReply(conn, enc, samples, exchange); err != nil {
			logger.Warn("reply failed", "error", err)
			return
		}
	}
}

// streamReply acknowledges the turn and streams the reply audio in chunks.
func streamReply(conn *websocket.Conn, enc *replyEncoder, samples []float32, exchange int) error {
	ack := serverMessage{
		Type:          "conversation",
		Status:        "processing",
		UserText:      fmt.Sprintf("(utterance %d, %.2fs)", exchange, float64(len(samples))/16000),
		AssistantText: fmt.Sprintf("Echoing your utterance %d back to you.", exchange),
	}
	if err := sendJSON(conn, ack); err != nil {
		return err
	}

	chunks, err := enc.encodeReply(samples)
	if err != nil {
		return sendJSON(conn, serverMessage{Status: "error", Error: err.Error()})
	}

	for i, chunk := range chunks {
		progress := serverMessage{
			Type:        "audio_stream",
			Status:      "streaming",
			ChunkNumber: i + 1,
			ChunkSize:   len(chunk),
			TotalChunks: len(chunks),
		}
		if err := sendJSON(conn, progress); err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return err
		}
	}

	return sendJSON(conn, serverMessage{Type: "audio_stream", Status: "complete"})
}

// serverMessage mirrors the client's control message schema.
type serverMessage struct {
	Status        string `json:"status"`
	Type          string `json:"type,omitempty"`
	UserText      string `json:"user_text,omitempty"`
	AssistantText string `json:"assistant_text,omitempty"`
	ChunkNumber   int    `json:"chunk_number,omitempty"`
	ChunkSize     int    `json:"chunk_size,omitempty"`
	TotalChunks   int    `json:"total_chunks,omitempty"`
	Error         string `json:"error,omitempty"`
}

func sendJSON(conn *websocket.Conn, msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
