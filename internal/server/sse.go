package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tabcoach/tabcoach/internal/event"
	"github.com/tabcoach/tabcoach/internal/logging"
)

// heartbeatInterval keeps intermediaries from timing out an idle feed.
const heartbeatInterval = 30 * time.Second

// handleEvents streams the coordinator's event bus over SSE. Diagnostic
// surface: every bus event is forwarded, slow consumers drop events rather
// than stall publishers.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeFail(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan event.Event, 64)
	unsubscribe := s.bus.SubscribeAll(func(ev event.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				logging.Warn().Err(err).Str("type", string(ev.Type)).Msg("event marshal failed")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
