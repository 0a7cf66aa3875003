package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tabcoach/tabcoach/internal/logging"
	"github.com/tabcoach/tabcoach/internal/session"
	"github.com/tabcoach/tabcoach/pkg/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The coordinator binds to localhost and the extension's origin is a
	// browser-internal scheme; origin checks buy nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSink serializes stream event writes onto one websocket. gorilla permits
// only one concurrent writer, and a tab may have events racing from the
// session goroutine and the read loop's error path.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(ev types.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// handleChannel runs one streaming chat channel. Each SEND_CHAT_STREAM frame
// spawns a session; pre-registration rejections come back as a STREAM_ERROR
// frame for the request so the client is never left waiting.
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("channel upgrade failed")
		return
	}
	defer conn.Close()

	// Sessions started from this connection die with it.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &wsSink{conn: conn}

	for {
		var msg types.ChannelMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug().Err(err).Msg("channel closed")
			}
			return
		}

		switch msg.Type {
		case types.MsgSendChatStream:
			go s.runSession(ctx, msg, sink)
		case types.MsgCancelChatStream:
			s.sessions.Cancel(msg.TabID, msg.RequestID)
		default:
			logging.Warn().Str("type", msg.Type).Msg("unknown channel message")
		}
	}
}

func (s *Server) runSession(ctx context.Context, msg types.ChannelMessage, sink *wsSink) {
	err := s.sessions.Start(ctx, session.StartRequest{
		TabID:        msg.TabID,
		RequestID:    msg.RequestID,
		Text:         msg.Text,
		Context:      msg.Context,
		CodeSnapshot: msg.CodeSnapshot,
	}, sink)
	if err == nil {
		return
	}

	// Start only errors before STREAM_START, so a single STREAM_ERROR frame
	// is the whole lifecycle the client sees for this request.
	if sendErr := sink.Send(types.StreamEvent{
		Type:      types.EvStreamError,
		RequestID: msg.RequestID,
		Error:     err.Error(),
	}); sendErr != nil {
		logging.Warn().Err(sendErr).Str("requestId", msg.RequestID).Msg("rejection delivery failed")
	}
}
