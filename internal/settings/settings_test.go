package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabcoach/tabcoach/internal/storage"
	"github.com/tabcoach/tabcoach/pkg/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(storage.New(t.TempDir()), nil)
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestGet_DefaultsWhenUnset(t *testing.T) {
	svc := newTestService(t)

	cfg, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestSave_AppliesOnlyPatchedFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Save(ctx, types.SettingsPatch{
		Provider: strPtr("anthropic"),
		Model:    strPtr("claude-sonnet-4-20250514"),
		APIKey:   strPtr("sk-test"),
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Model)
	assert.Equal(t, "sk-test", cfg.APIKey)
	// Untouched fields keep their defaults.
	assert.Equal(t, "guided", cfg.CoachingStyle)
	assert.Equal(t, 0.7, cfg.Temperature)

	// A later patch must not disturb earlier fields.
	cfg, err = svc.Save(ctx, types.SettingsPatch{Verbosity: strPtr("concise")})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "concise", cfg.Verbosity)
}

func TestSave_ClampsEnums(t *testing.T) {
	svc := newTestService(t)

	cfg, err := svc.Save(context.Background(), types.SettingsPatch{
		Provider:      strPtr("gemini"),
		CoachingStyle: strPtr("brutal"),
		Verbosity:     strPtr("screaming"),
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "guided", cfg.CoachingStyle)
	assert.Equal(t, "normal", cfg.Verbosity)
}

func TestSave_ClampsTemperature(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Save(ctx, types.SettingsPatch{Temperature: floatPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Temperature)

	cfg, err = svc.Save(ctx, types.SettingsPatch{Temperature: floatPtr(-2)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Temperature)
}

func TestSave_Persists(t *testing.T) {
	store := storage.New(t.TempDir())
	ctx := context.Background()

	first := NewService(store, nil)
	_, err := first.Save(ctx, types.SettingsPatch{CustomPrompt: strPtr("prefer Python examples")})
	require.NoError(t, err)

	second := NewService(store, nil)
	cfg, err := second.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "prefer Python examples", cfg.CustomPrompt)
}

func TestNormalize_EmptyModelFallsBack(t *testing.T) {
	out := Normalize(types.Settings{Provider: "openai"})
	assert.Equal(t, Defaults().Model, out.Model)
}
