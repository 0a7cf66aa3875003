package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tabcoach/tabcoach/internal/logging"
	"github.com/tabcoach/tabcoach/pkg/types"
)

// Client publishes tab state to the coordinator's one-shot bus and maintains
// the websocket back-channel for forwarded commands.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a coordinator client for the given base URL, e.g.
// "http://127.0.0.1:7821".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// PublishContext sends a freshly extracted problem context.
func (c *Client) PublishContext(ctx context.Context, tabID string, pctx *types.ProblemContext) error {
	return c.postJSON(ctx, "/tab/"+tabID+"/context", map[string]any{"context": pctx})
}

// PublishSnapshot sends a captured code snapshot.
func (c *Client) PublishSnapshot(ctx context.Context, tabID string, snap *types.CodeSnapshot) error {
	return c.postJSON(ctx, "/tab/"+tabID+"/snapshot", map[string]any{"codeSnapshot": snap})
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !envelope.OK {
		return errors.New(envelope.Error)
	}
	return nil
}

// RescanFunc produces a fresh problem context on demand.
type RescanFunc func(ctx context.Context) (*types.ProblemContext, error)

// RunBackChannel runs one back-channel connection lifetime: dial, identify
// the tab, then serve forwarded commands until the connection or context
// dies. The caller handles reconnection.
func (c *Client) RunBackChannel(ctx context.Context, tabID string, rescan RescanFunc) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("dial back-channel: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the context dies.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	var writeMu sync.Mutex
	send := func(frame types.ObserverFrame) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(frame)
	}

	if err := send(types.ObserverFrame{Type: types.MsgObserverHello, TabID: tabID}); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	logging.Info().Str("tabId", tabID).Msg("back-channel attached")

	for {
		var frame types.ObserverFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("back-channel read: %w", err)
		}

		switch frame.Type {
		case types.MsgRescanContext:
			go func(id string) {
				reply := types.ObserverFrame{Type: types.MsgRescanResult, ID: id, TabID: tabID}
				pctx, err := rescan(ctx)
				if err != nil {
					reply.Error = err.Error()
				} else {
					reply.Context = pctx
				}
				if err := send(reply); err != nil {
					logging.Warn().Err(err).Str("id", id).Msg("rescan reply failed")
				}
			}(frame.ID)
		default:
			logging.Warn().Str("type", frame.Type).Msg("unknown back-channel frame")
		}
	}
}

func (c *Client) wsURL() string {
	url := c.baseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/observer"
}
