// Package session implements the streaming chat session manager: one LLM
// completion stream per (tab, request) pair, with cooperative cancellation,
// ordered event delivery, and history persisted only on success.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/tabcoach/tabcoach/internal/event"
	"github.com/tabcoach/tabcoach/internal/logging"
	"github.com/tabcoach/tabcoach/internal/provider"
	"github.com/tabcoach/tabcoach/internal/settings"
	"github.com/tabcoach/tabcoach/internal/tabstate"
	"github.com/tabcoach/tabcoach/pkg/types"
)

const (
	// MaxRetries is the maximum number of retries for stream creation.
	MaxRetries = 3
	// RetryInitialInterval is the initial interval for exponential backoff.
	RetryInitialInterval = time.Second
	// RetryMaxInterval is the maximum interval for exponential backoff.
	RetryMaxInterval = 15 * time.Second
	// RetryMaxElapsedTime is the maximum total time for retries.
	RetryMaxElapsedTime = time.Minute
)

// EventSink receives stream events for one channel endpoint. Implementations
// must tolerate Send being called from the session goroutine.
type EventSink interface {
	Send(ev types.StreamEvent) error
}

// StartRequest carries one SEND_CHAT_STREAM request into the manager.
// Context and CodeSnapshot are optional hints; when present they are fresher
// than the persisted tab state and take precedence over it.
type StartRequest struct {
	TabID        string
	RequestID    string
	Text         string
	Context      *types.ProblemContext
	CodeSnapshot *types.CodeSnapshot
}

type sessionKey struct {
	tabID     string
	requestID string
}

type liveSession struct {
	key    sessionKey
	cancel context.CancelFunc
}

// Manager owns the session registry. Construct one at process start and
// inject it into the channel handlers; there is no ambient instance.
type Manager struct {
	tabs      *tabstate.Service
	settings  *settings.Service
	providers provider.Factory
	bus       *event.Bus

	mu     sync.Mutex
	active map[sessionKey]*liveSession
	byTab  map[string]string // tabID -> requestID of the live session
}

// NewManager creates a session manager.
func NewManager(tabs *tabstate.Service, st *settings.Service, providers provider.Factory, bus *event.Bus) *Manager {
	return &Manager{
		tabs:      tabs,
		settings:  st,
		providers: providers,
		bus:       bus,
		active:    make(map[sessionKey]*liveSession),
		byTab:     make(map[string]string),
	}
}

// Live reports whether a session is currently registered for the pair.
func (m *Manager) Live(tabID, requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[sessionKey{tabID, requestID}]
	return ok
}

// ActiveCount returns the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Start runs one completion stream to completion, emitting events on sink.
//
// Failures before the session is registered (empty input, missing
// credential, busy tab) are returned as errors without any event; from
// STREAM_START onward every outcome is delivered as exactly one terminal
// event and the error return is nil.
func (m *Manager) Start(ctx context.Context, req StartRequest, sink EventSink) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyInput
	}

	cfg, err := m.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if cfg.APIKey == "" {
		return ErrMissingCredential
	}

	sess, err := m.register(ctx, req.TabID, req.RequestID)
	if err != nil {
		return err
	}
	sctx := sess.ctx
	defer m.unregister(sess.live)

	m.emit(sink, types.StreamEvent{Type: types.EvStreamStart, RequestID: req.RequestID})
	if m.bus != nil {
		m.bus.Publish(event.Event{
			Type: event.StreamStarted,
			Data: event.StreamData{TabID: req.TabID, RequestID: req.RequestID},
		})
	}

	response, history, err := m.run(sctx, cfg, req, sink)
	outcome := "done"
	switch {
	case err == nil:
		m.emit(sink, types.StreamEvent{
			Type:      types.EvStreamDone,
			RequestID: req.RequestID,
			History:   history,
			Response:  response,
		})
	case isCanceled(sctx, err):
		outcome = "canceled"
		m.emit(sink, types.StreamEvent{
			Type:      types.EvStreamError,
			RequestID: req.RequestID,
			Error:     CanceledMessage,
		})
	default:
		outcome = "error"
		logging.Error().Err(err).
			Str("tabId", req.TabID).
			Str("requestId", req.RequestID).
			Msg("stream failed")
		m.emit(sink, types.StreamEvent{
			Type:      types.EvStreamError,
			RequestID: req.RequestID,
			Error:     truncateError(err.Error()),
		})
	}

	if m.bus != nil {
		m.bus.Publish(event.Event{
			Type: event.StreamFinished,
			Data: event.StreamData{TabID: req.TabID, RequestID: req.RequestID, Outcome: outcome},
		})
	}

	return nil
}

// Cancel signals cooperative abort for the session. Idempotent: canceling an
// unknown or already-settled session is a no-op, and no events or state
// changes originate here; the in-flight Start call observes the abort and
// runs its own failure path.
func (m *Manager) Cancel(tabID, requestID string) {
	m.mu.Lock()
	sess, ok := m.active[sessionKey{tabID, requestID}]
	m.mu.Unlock()

	if ok {
		sess.cancel()
	}
}

// CancelTab aborts whatever session is live for the tab, if any. Used when
// the owning tab closes mid-stream.
func (m *Manager) CancelTab(tabID string) {
	m.mu.Lock()
	requestID, ok := m.byTab[tabID]
	var sess *liveSession
	if ok {
		sess = m.active[sessionKey{tabID, requestID}]
	}
	m.mu.Unlock()

	if sess != nil {
		sess.cancel()
	}
}

type registered struct {
	live *liveSession
	ctx  context.Context
}

func (m *Manager) register(ctx context.Context, tabID, requestID string) (*registered, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if liveReq, ok := m.byTab[tabID]; ok {
		if liveReq == requestID {
			return nil, ErrSessionExists
		}
		return nil, ErrSessionBusy
	}

	sctx, cancel := context.WithCancel(ctx)
	sess := &liveSession{key: sessionKey{tabID, requestID}, cancel: cancel}
	m.active[sess.key] = sess
	m.byTab[tabID] = requestID

	return &registered{live: sess, ctx: sctx}, nil
}

func (m *Manager) unregister(sess *liveSession) {
	sess.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.active, sess.key)
	if m.byTab[sess.key.tabID] == sess.key.requestID {
		delete(m.byTab, sess.key.tabID)
	}
}

// run executes the provider call and returns the full response text plus the
// updated history. History is persisted only on the nil-error path.
func (m *Manager) run(ctx context.Context, cfg types.Settings, req StartRequest, sink EventSink) (string, []types.ChatHistoryItem, error) {
	// The caller's in-memory state is fresher than the store in the common
	// case; fall back to the persisted tab state only for absent hints.
	pctx := req.Context
	snap := req.CodeSnapshot
	if pctx == nil || !snap.Valid() {
		state, err := m.tabs.Get(ctx, req.TabID)
		if err != nil {
			return "", nil, fmt.Errorf("load tab state: %w", err)
		}
		if pctx == nil {
			pctx = state.Context
		}
		if !snap.Valid() {
			snap = state.CodeSnapshot
		}
	}

	prior, err := m.tabs.History(ctx, req.TabID)
	if err != nil {
		return "", nil, fmt.Errorf("load history: %w", err)
	}

	messages := buildMessages(cfg, pctx, snap, prior, req.Text)

	prov, err := m.providers.ForSettings(ctx, cfg)
	if err != nil {
		return "", nil, err
	}

	stream, err := createStreamWithRetry(ctx, prov, &provider.CompletionRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return "", nil, err
	}
	defer stream.Close()

	full, err := m.pump(ctx, stream, req.RequestID, sink)
	if err != nil {
		return "", nil, err
	}

	history, err := m.tabs.AppendExchange(ctx, req.TabID, req.Text, full)
	if err != nil {
		return "", nil, fmt.Errorf("persist history: %w", err)
	}

	return full, history, nil
}

// pump reads the stream and emits each increment exactly once. Providers
// differ on whether chunks carry cumulative text or deltas; accumulating and
// diffing handles both without ever re-sending emitted text.
func (m *Manager) pump(ctx context.Context, stream *provider.CompletionStream, requestID string, sink EventSink) (string, error) {
	var full strings.Builder

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		chunk := msg.Content
		if chunk == "" {
			continue
		}

		acc := full.String()
		var delta string
		switch {
		case len(chunk) > len(acc) && strings.HasPrefix(chunk, acc):
			// Cumulative stream: the suffix is the new text.
			delta = chunk[len(acc):]
		case chunk == acc:
			continue
		default:
			delta = chunk
		}

		full.WriteString(delta)
		m.emit(sink, types.StreamEvent{Type: types.EvStreamChunk, RequestID: requestID, Chunk: delta})
	}

	return full.String(), nil
}

// createStreamWithRetry wraps stream creation in exponential backoff with
// jitter. Only creation is retried; once chunks flow, failures surface
// directly.
func createStreamWithRetry(ctx context.Context, prov provider.Provider, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.MaxElapsedTime = RetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Reset()

	var stream *provider.CompletionStream
	err := backoff.Retry(func() error {
		var err error
		stream, err = prov.CreateCompletion(ctx, req)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx))

	return stream, err
}

// buildMessages assembles the provider message list: system instruction,
// prior history, then the new user turn.
func buildMessages(cfg types.Settings, pctx *types.ProblemContext, snap *types.CodeSnapshot, history []types.ChatHistoryItem, userText string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)

	if system := BuildSystemPrompt(cfg, pctx, snap); system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}

	for _, item := range history {
		switch item.Role {
		case types.RoleUser:
			messages = append(messages, schema.UserMessage(item.Content))
		case types.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(item.Content, nil))
		}
	}

	messages = append(messages, schema.UserMessage(userText))
	return messages
}

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

func (m *Manager) emit(sink EventSink, ev types.StreamEvent) {
	if err := sink.Send(ev); err != nil {
		logging.Warn().Err(err).
			Str("requestId", ev.RequestID).
			Str("type", ev.Type).
			Msg("event delivery failed")
	}
}
