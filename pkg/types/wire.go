package types

// Streaming channel message types (client to coordinator).
const (
	MsgSendChatStream   = "SEND_CHAT_STREAM"
	MsgCancelChatStream = "CANCEL_CHAT_STREAM"
)

// Streaming channel event types (coordinator to client).
const (
	EvStreamStart = "STREAM_START"
	EvStreamChunk = "STREAM_CHUNK"
	EvStreamDone  = "STREAM_DONE"
	EvStreamError = "STREAM_ERROR"
)

// ChannelMessage is a client frame on the streaming channel.
type ChannelMessage struct {
	Type         string          `json:"type"`
	TabID        string          `json:"tabId"`
	RequestID    string          `json:"requestId"`
	Text         string          `json:"text,omitempty"`
	Context      *ProblemContext `json:"context,omitempty"`
	CodeSnapshot *CodeSnapshot   `json:"codeSnapshot,omitempty"`
}

// StreamEvent is a coordinator frame on the streaming channel. Exactly one
// terminal event (STREAM_DONE or STREAM_ERROR) follows each STREAM_START.
type StreamEvent struct {
	Type      string            `json:"type"`
	RequestID string            `json:"requestId"`
	Chunk     string            `json:"chunk,omitempty"`
	History   []ChatHistoryItem `json:"history,omitempty"`
	Response  string            `json:"response,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Observer back-channel frames. The coordinator forwards rescan commands to
// the owning tab's observer and correlates the reply by ID.
const (
	MsgObserverHello = "OBSERVER_HELLO"
	MsgRescanContext = "RESCAN_CONTEXT"
	MsgRescanResult  = "RESCAN_RESULT"
)

// ObserverFrame is one frame on an observer's back-channel.
type ObserverFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TabID   string          `json:"tabId,omitempty"`
	Context *ProblemContext `json:"context,omitempty"`
	Error   string          `json:"error,omitempty"`
}

