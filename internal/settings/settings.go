// Package settings manages the process-wide assistant settings.
//
// Every write goes through Normalize: enum fields are clamped to a fixed
// allowed set or their default, temperature is clamped to [0,1]. Reads of a
// missing store entry return the defaults.
package settings

import (
	"context"
	"errors"
	"sync"

	"github.com/tabcoach/tabcoach/internal/event"
	"github.com/tabcoach/tabcoach/internal/storage"
	"github.com/tabcoach/tabcoach/pkg/types"
)

// storageKey is the fixed store key for settings.
var storageKey = []string{"settings"}

// Allowed enum values. The first entry of each set is the default.
var (
	Providers      = []string{"openai", "anthropic"}
	CoachingStyles = []string{"guided", "socratic", "direct"}
	Verbosities    = []string{"normal", "concise", "detailed"}
)

// Defaults returns the default settings.
func Defaults() types.Settings {
	return types.Settings{
		Provider:      Providers[0],
		Model:         "gpt-4o",
		CoachingStyle: CoachingStyles[0],
		Verbosity:     Verbosities[0],
		Temperature:   0.7,
	}
}

// Service owns settings persistence and normalization.
type Service struct {
	store *storage.Storage
	bus   *event.Bus
	mu    sync.Mutex
}

// NewService creates a settings service.
func NewService(store *storage.Storage, bus *event.Bus) *Service {
	return &Service{store: store, bus: bus}
}

// Get returns the current settings, or defaults if none are stored.
func (s *Service) Get(ctx context.Context) (types.Settings, error) {
	var cur types.Settings
	err := s.store.Get(ctx, storageKey, &cur)
	if errors.Is(err, storage.ErrNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return types.Settings{}, err
	}
	return Normalize(cur), nil
}

// Save applies the patch to the stored settings, normalizes the result,
// persists it, and returns the fully normalized settings.
func (s *Service) Save(ctx context.Context, patch types.SettingsPatch) (types.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.Get(ctx)
	if err != nil {
		return types.Settings{}, err
	}

	if patch.Provider != nil {
		cur.Provider = *patch.Provider
	}
	if patch.Model != nil {
		cur.Model = *patch.Model
	}
	if patch.APIKey != nil {
		cur.APIKey = *patch.APIKey
	}
	if patch.CoachingStyle != nil {
		cur.CoachingStyle = *patch.CoachingStyle
	}
	if patch.Verbosity != nil {
		cur.Verbosity = *patch.Verbosity
	}
	if patch.Temperature != nil {
		cur.Temperature = *patch.Temperature
	}
	if patch.CustomPrompt != nil {
		cur.CustomPrompt = *patch.CustomPrompt
	}

	cur = Normalize(cur)

	if err := s.store.Put(ctx, storageKey, cur); err != nil {
		return types.Settings{}, err
	}

	if s.bus != nil {
		s.bus.Publish(event.Event{Type: event.SettingsUpdated, Data: cur})
	}

	return cur, nil
}

// Normalize clamps every field to its allowed set or fallback default.
func Normalize(in types.Settings) types.Settings {
	out := in
	out.Provider = clampEnum(in.Provider, Providers)
	out.CoachingStyle = clampEnum(in.CoachingStyle, CoachingStyles)
	out.Verbosity = clampEnum(in.Verbosity, Verbosities)
	out.Temperature = clampRange(in.Temperature, 0, 1)
	if out.Model == "" {
		out.Model = Defaults().Model
	}
	return out
}

func clampEnum(v string, allowed []string) string {
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return allowed[0]
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
