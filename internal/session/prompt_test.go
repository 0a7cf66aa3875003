package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabcoach/tabcoach/pkg/types"
)

func TestBuildSystemPrompt_SectionOrder(t *testing.T) {
	cfg := types.Settings{
		CoachingStyle: "socratic",
		Verbosity:     "concise",
		CustomPrompt:  "Always answer in Portuguese.",
	}
	pctx := &types.ProblemContext{Title: "Two Sum", Description: "Find two numbers."}
	snap := &types.CodeSnapshot{Source: types.SourceMonaco, Language: "python", Code: "def f(): pass"}

	prompt := BuildSystemPrompt(cfg, pctx, snap)

	iStyle := strings.Index(prompt, "guiding questions")
	iVerb := strings.Index(prompt, "Keep responses short")
	iCustom := strings.Index(prompt, "Portuguese")
	iCtx := strings.Index(prompt, "Two Sum")
	iCode := strings.Index(prompt, "def f(): pass")

	for name, idx := range map[string]int{
		"style": iStyle, "verbosity": iVerb, "custom": iCustom, "context": iCtx, "code": iCode,
	} {
		require.GreaterOrEqual(t, idx, 0, "missing %s section", name)
	}
	assert.Less(t, iStyle, iVerb)
	assert.Less(t, iVerb, iCustom)
	assert.Less(t, iCustom, iCtx)
	assert.Less(t, iCtx, iCode)
}

func TestBuildSystemPrompt_EmptySectionsOmitted(t *testing.T) {
	prompt := BuildSystemPrompt(types.Settings{CoachingStyle: "direct", Verbosity: "normal"}, nil, nil)

	assert.Contains(t, prompt, "Answer directly")
	assert.NotContains(t, prompt, "# Problem")
	assert.NotContains(t, prompt, "```")
	// No dangling separators from the omitted sections.
	assert.False(t, strings.HasSuffix(prompt, "\n\n"))
}

func TestBuildSystemPrompt_AllEmpty(t *testing.T) {
	assert.Empty(t, BuildSystemPrompt(types.Settings{Verbosity: "normal"}, nil, nil))
}

func TestBuildSystemPrompt_WhitespaceSnapshotIgnored(t *testing.T) {
	snap := &types.CodeSnapshot{Source: types.SourceTextArea, Code: "   \n  "}
	prompt := BuildSystemPrompt(types.Settings{CoachingStyle: "guided"}, nil, snap)
	assert.NotContains(t, prompt, "```")
}

func TestBuildSystemPrompt_SelectionMentioned(t *testing.T) {
	snap := &types.CodeSnapshot{
		Source:    types.SourceMonaco,
		Code:      "abcdef",
		Selection: &types.SelectionRange{Start: 2, End: 5},
	}
	prompt := BuildSystemPrompt(types.Settings{}, nil, snap)
	assert.Contains(t, prompt, "characters 2-5")
}

func TestBuildSystemPrompt_ContextSections(t *testing.T) {
	pctx := &types.ProblemContext{
		Title:       "Median of Two Sorted Arrays",
		URL:         "https://leetcode.com/problems/median-of-two-sorted-arrays/",
		Description: "Given two sorted arrays...",
		Constraints: "0 <= m <= 1000",
		Examples:    "Input: nums1 = [1,3]",
	}
	prompt := BuildSystemPrompt(types.Settings{}, pctx, nil)

	assert.Contains(t, prompt, "# Problem")
	assert.Contains(t, prompt, "## Constraints")
	assert.Contains(t, prompt, "## Examples")
	assert.Contains(t, prompt, "Median of Two Sorted Arrays")
}
