package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/tabcoach/tabcoach/pkg/types"
)

// Factory builds a Provider for the given settings. It exists so tests can
// substitute a fake completion capability for the real vendor SDKs.
type Factory interface {
	ForSettings(ctx context.Context, s types.Settings) (Provider, error)
}

// Registry caches constructed providers keyed by provider id + credential,
// so a stream per message does not rebuild the vendor client every time.
type Registry struct {
	mu    sync.Mutex
	cache map[string]Provider
}

// NewRegistry creates a provider registry.
func NewRegistry() *Registry {
	return &Registry{cache: make(map[string]Provider)}
}

// ForSettings returns a provider matching the current settings, constructing
// and caching it on first use.
func (r *Registry) ForSettings(ctx context.Context, s types.Settings) (Provider, error) {
	key := s.Provider + "/" + s.Model + "/" + fingerprint(s.APIKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.cache[key]; ok {
		return p, nil
	}

	var (
		p   Provider
		err error
	)
	switch s.Provider {
	case "anthropic":
		p, err = NewAnthropicProvider(ctx, &AnthropicConfig{APIKey: s.APIKey, Model: s.Model})
	case "openai":
		p, err = NewOpenAIProvider(ctx, &OpenAIConfig{APIKey: s.APIKey, Model: s.Model})
	default:
		return nil, fmt.Errorf("unknown provider: %s", s.Provider)
	}
	if err != nil {
		return nil, err
	}

	r.cache[key] = p
	return p, nil
}

// fingerprint avoids keying the cache on the raw credential.
func fingerprint(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:4] + key[len(key)-4:]
}
