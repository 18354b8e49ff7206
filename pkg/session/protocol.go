package session

// The conversation service speaks a small duplex protocol over one WebSocket:
// the client sends raw audio as binary frames, the service replies with JSON
// control messages as text frames and encoded audio chunks as binary frames.

// Control message types.
const (
	typeConversation = "conversation"
	typeAudioStream  = "audio_stream"
)

// Control message statuses.
const (
	statusProcessing = "processing"
	statusStreaming  = "streaming"
	statusComplete   = "complete"
	statusError      = "error"
)

// serverMessage is one JSON control message from the service. Fields beyond
// status and type are present only for the message kinds that carry them.
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

// StreamProgress describes one streaming progress report from the service.
type StreamProgress struct {
	// ChunkNumber is the 1-based index of the chunk being streamed.
	ChunkNumber int
	// ChunkSize is the size of that chunk in bytes.
	ChunkSize int
	// TotalChunks is the expected chunk count, when the service knows it.
	TotalChunks int
}
