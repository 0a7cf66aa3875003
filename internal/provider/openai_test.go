package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletionOptions_ZeroValuesOmitted(t *testing.T) {
	// A request that sets neither knob must not send per-request overrides,
	// otherwise max_completion_tokens=0 would shadow the model default.
	opts := completionOptions(&CompletionRequest{Model: "gpt-4o"})
	assert.Empty(t, opts)
}

func TestCompletionOptions_SetValuesForwarded(t *testing.T) {
	opts := completionOptions(&CompletionRequest{
		Model:       "gpt-4o",
		MaxTokens:   512,
		Temperature: 0.7,
	})
	assert.Len(t, opts, 2)
}

func TestCompletionOptions_TemperatureAlone(t *testing.T) {
	opts := completionOptions(&CompletionRequest{Model: "gpt-4o", Temperature: 0.2})
	assert.Len(t, opts, 1)
}
