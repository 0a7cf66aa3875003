package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/tabcoach/tabcoach/internal/logging"
	"github.com/tabcoach/tabcoach/pkg/types"
)

// ErrNoObserver means no observer back-channel is attached for the tab.
var ErrNoObserver = errors.New("no observer attached for tab")

// observerConn wraps one observer websocket with serialized writes.
type observerConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *observerConn) send(frame types.ObserverFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(frame)
}

// ObserverRegistry tracks the observer back-channel per tab and correlates
// command replies by id.
type ObserverRegistry struct {
	mu      sync.Mutex
	conns   map[string]*observerConn
	pending map[string]chan types.ObserverFrame
}

// NewObserverRegistry creates an empty registry.
func NewObserverRegistry() *ObserverRegistry {
	return &ObserverRegistry{
		conns:   make(map[string]*observerConn),
		pending: make(map[string]chan types.ObserverFrame),
	}
}

// register attaches an observer for a tab, displacing any stale predecessor.
func (o *ObserverRegistry) register(tabID string, conn *observerConn) {
	o.mu.Lock()
	prev := o.conns[tabID]
	o.conns[tabID] = conn
	o.mu.Unlock()

	if prev != nil {
		prev.conn.Close()
	}
}

// unregister detaches the observer, but only if it is still the current one.
func (o *ObserverRegistry) unregister(tabID string, conn *observerConn) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.conns[tabID] == conn {
		delete(o.conns, tabID)
	}
}

// Attached reports whether an observer is currently connected for the tab.
func (o *ObserverRegistry) Attached(tabID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.conns[tabID]
	return ok
}

// Rescan forwards a RESCAN_CONTEXT command to the tab's observer and waits
// for the correlated RESCAN_RESULT.
func (o *ObserverRegistry) Rescan(ctx context.Context, tabID string, timeout time.Duration) (*types.ProblemContext, error) {
	o.mu.Lock()
	conn, ok := o.conns[tabID]
	o.mu.Unlock()
	if !ok {
		return nil, ErrNoObserver
	}

	id := ulid.Make().String()
	reply := make(chan types.ObserverFrame, 1)

	o.mu.Lock()
	o.pending[id] = reply
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.pending, id)
		o.mu.Unlock()
	}()

	if err := conn.send(types.ObserverFrame{Type: types.MsgRescanContext, ID: id, TabID: tabID}); err != nil {
		return nil, fmt.Errorf("forward rescan: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-reply:
		if frame.Error != "" {
			return nil, errors.New(frame.Error)
		}
		if frame.Context == nil {
			return nil, errors.New("observer returned no context")
		}
		return frame.Context, nil
	case <-timer.C:
		return nil, fmt.Errorf("rescan timed out after %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve routes a RESCAN_RESULT frame to its waiting caller. Late replies
// whose caller already gave up are dropped.
func (o *ObserverRegistry) resolve(frame types.ObserverFrame) {
	o.mu.Lock()
	reply, ok := o.pending[frame.ID]
	o.mu.Unlock()

	if ok {
		select {
		case reply <- frame:
		default:
		}
	}
}

// handleObserver runs one observer back-channel. The first frame must be
// OBSERVER_HELLO naming the tab; after that the loop only routes replies.
func (s *Server) handleObserver(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("observer upgrade failed")
		return
	}
	defer conn.Close()

	var hello types.ObserverFrame
	if err := conn.ReadJSON(&hello); err != nil {
		return
	}
	if hello.Type != types.MsgObserverHello || hello.TabID == "" {
		logging.Warn().Str("type", hello.Type).Msg("observer handshake rejected")
		return
	}

	oc := &observerConn{conn: conn}
	s.observers.register(hello.TabID, oc)
	defer s.observers.unregister(hello.TabID, oc)

	logging.Info().Str("tabId", hello.TabID).Msg("observer attached")

	for {
		var frame types.ObserverFrame
		if err := conn.ReadJSON(&frame); err != nil {
			logging.Debug().Err(err).Str("tabId", hello.TabID).Msg("observer detached")
			return
		}

		switch frame.Type {
		case types.MsgRescanResult:
			s.observers.resolve(frame)
		default:
			logging.Warn().Str("type", frame.Type).Msg("unknown observer frame")
		}
	}
}
