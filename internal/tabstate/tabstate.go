// Package tabstate keeps the durable per-tab snapshot of problem context,
// code, and chat history.
//
// Context and code fields are last-writer-wins: concurrent merges may
// interleave and the freshest scan self-corrects on the next cycle. History
// is different, a lost append is user-visible, so the read-append-truncate-
// write cycle runs under a per-tab in-process mutex.
package tabstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tabcoach/tabcoach/internal/event"
	"github.com/tabcoach/tabcoach/internal/storage"
	"github.com/tabcoach/tabcoach/pkg/types"
)

// Service manages tab state and chat history persistence.
type Service struct {
	store *storage.Storage
	bus   *event.Bus

	mu       sync.Mutex
	tabLocks map[string]*sync.Mutex
}

// NewService creates a tab state service.
func NewService(store *storage.Storage, bus *event.Bus) *Service {
	return &Service{
		store:    store,
		bus:      bus,
		tabLocks: make(map[string]*sync.Mutex),
	}
}

func stateKey(tabID string) []string   { return []string{"tabstate", tabID} }
func historyKey(tabID string) []string { return []string{"history", tabID} }

// Get returns the stored state for a tab, or an empty state if none exists.
func (s *Service) Get(ctx context.Context, tabID string) (types.TabState, error) {
	var state types.TabState
	err := s.store.Get(ctx, stateKey(tabID), &state)
	if errors.Is(err, storage.ErrNotFound) {
		return types.TabState{}, nil
	}
	if err != nil {
		return types.TabState{}, err
	}
	return state, nil
}

// Merge shallow-merges the fields present in patch into the stored state.
// Absent fields are left untouched. The state entry is created lazily on
// first write.
func (s *Service) Merge(ctx context.Context, tabID string, patch types.TabStatePatch) (types.TabState, error) {
	state, err := s.Get(ctx, tabID)
	if err != nil {
		return types.TabState{}, err
	}

	if patch.Context != nil {
		ctxCopy := *patch.Context
		state.Context = &ctxCopy
	}
	// An empty capture is "no snapshot": discard it instead of storing.
	if patch.CodeSnapshot != nil && !patch.CodeSnapshot.Valid() {
		patch.CodeSnapshot = nil
	}
	if patch.CodeSnapshot != nil {
		snapCopy := *patch.CodeSnapshot
		state.CodeSnapshot = &snapCopy
	}

	if err := s.store.Put(ctx, stateKey(tabID), state); err != nil {
		return types.TabState{}, err
	}

	if s.bus != nil {
		if patch.Context != nil {
			s.bus.Publish(event.Event{Type: event.ContextUpdated, Data: event.ContextUpdatedData{TabID: tabID}})
		}
		if patch.CodeSnapshot != nil {
			s.bus.Publish(event.Event{
				Type: event.SnapshotUpdated,
				Data: event.SnapshotUpdatedData{TabID: tabID, Source: string(patch.CodeSnapshot.Source)},
			})
		}
	}

	return state, nil
}

// History returns the chat history for a tab, oldest first.
func (s *Service) History(ctx context.Context, tabID string) ([]types.ChatHistoryItem, error) {
	var history []types.ChatHistoryItem
	err := s.store.Get(ctx, historyKey(tabID), &history)
	if errors.Is(err, storage.ErrNotFound) {
		return []types.ChatHistoryItem{}, nil
	}
	if err != nil {
		return nil, err
	}
	return history, nil
}

// AppendExchange appends a user and an assistant turn to the tab's history,
// truncates to the retention cap, and persists. The whole read-modify-write
// runs under the tab's lock so concurrent appends cannot drop turns.
func (s *Service) AppendExchange(ctx context.Context, tabID, userText, assistantText string) ([]types.ChatHistoryItem, error) {
	lock := s.tabLock(tabID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.History(ctx, tabID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	history = append(history,
		types.ChatHistoryItem{Role: types.RoleUser, Content: userText, CreatedAt: now},
		types.ChatHistoryItem{Role: types.RoleAssistant, Content: assistantText, CreatedAt: now},
	)

	if len(history) > types.HistoryCap {
		history = history[len(history)-types.HistoryCap:]
	}

	if err := s.store.Put(ctx, historyKey(tabID), history); err != nil {
		return nil, err
	}

	return history, nil
}

// ClearHistory removes all history for a tab.
func (s *Service) ClearHistory(ctx context.Context, tabID string) error {
	lock := s.tabLock(tabID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Delete(ctx, historyKey(tabID)); err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Publish(event.Event{Type: event.HistoryCleared, Data: event.TabClosedData{TabID: tabID}})
	}

	return nil
}

// Delete removes a tab's state and history when the owning tab closes.
func (s *Service) Delete(ctx context.Context, tabID string) error {
	lock := s.tabLock(tabID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Delete(ctx, stateKey(tabID)); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, historyKey(tabID)); err != nil {
		return err
	}

	// The lock entry stays. Dropping it while an append holds the mutex
	// would hand the next caller a fresh instance and let the two
	// read-modify-writes interleave. Entries are a pointer per tab seen
	// this process lifetime.

	if s.bus != nil {
		s.bus.Publish(event.Event{Type: event.TabClosed, Data: event.TabClosedData{TabID: tabID}})
	}

	return nil
}

func (s *Service) tabLock(tabID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.tabLocks[tabID]
	if !ok {
		lock = &sync.Mutex{}
		s.tabLocks[tabID] = lock
	}
	return lock
}
