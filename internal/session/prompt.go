package session

import (
	"fmt"
	"strings"

	"github.com/tabcoach/tabcoach/pkg/types"
)

// BuildSystemPrompt constructs the system instruction for one exchange.
//
// Sections appear in a fixed order (coaching style, verbosity, the user's
// custom fragment, serialized problem context, serialized code snapshot)
// with empty sections omitted and the rest joined by blank lines. Later
// sections override earlier ones when instructions conflict, so the concrete
// problem and code always land closest to the generation.
func BuildSystemPrompt(s types.Settings, pctx *types.ProblemContext, snap *types.CodeSnapshot) string {
	var parts []string

	if style := styleInstruction(s.CoachingStyle); style != "" {
		parts = append(parts, style)
	}
	if verb := verbosityInstruction(s.Verbosity); verb != "" {
		parts = append(parts, verb)
	}
	if custom := strings.TrimSpace(s.CustomPrompt); custom != "" {
		parts = append(parts, custom)
	}
	if ctxText := serializeContext(pctx); ctxText != "" {
		parts = append(parts, ctxText)
	}
	if codeText := serializeSnapshot(snap); codeText != "" {
		parts = append(parts, codeText)
	}

	return strings.Join(parts, "\n\n")
}

func styleInstruction(style string) string {
	switch style {
	case "socratic":
		return `You are a coding interview coach. Never hand over a full solution. Ask guiding questions that lead the user to discover the approach themselves, one step at a time.`
	case "direct":
		return `You are a coding assistant. Answer directly and completely, including working code when it helps.`
	case "guided":
		return `You are a coding coach. Explain the key insight and outline the approach, but let the user write the code. Share small snippets only when the user is stuck.`
	default:
		return ""
	}
}

func verbosityInstruction(verbosity string) string {
	switch verbosity {
	case "concise":
		return "Keep responses short. Lead with the answer; skip preamble and recap."
	case "detailed":
		return "Explain your reasoning thoroughly, including complexity analysis and edge cases."
	case "normal":
		return ""
	default:
		return ""
	}
}

// serializeContext renders the problem context as a markdown section.
func serializeContext(pctx *types.ProblemContext) string {
	if pctx == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("# Problem\n\n")
	if pctx.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", pctx.Title)
	}
	if pctx.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", pctx.URL)
	}
	if pctx.Description != "" {
		b.WriteString("\n")
		b.WriteString(pctx.Description)
		b.WriteString("\n")
	}
	if pctx.Constraints != "" {
		b.WriteString("\n## Constraints\n\n")
		b.WriteString(pctx.Constraints)
		b.WriteString("\n")
	}
	if pctx.Examples != "" {
		b.WriteString("\n## Examples\n\n")
		b.WriteString(pctx.Examples)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// serializeSnapshot renders the captured code as a fenced block.
func serializeSnapshot(snap *types.CodeSnapshot) string {
	if !snap.Valid() {
		return ""
	}

	lang := snap.Language
	var b strings.Builder
	fmt.Fprintf(&b, "# User's Current Code (source: %s)\n\n", snap.Source)
	fmt.Fprintf(&b, "```%s\n%s\n```", lang, strings.TrimRight(snap.Code, "\n"))
	if sel := snap.Selection; sel != nil && sel.End > sel.Start {
		fmt.Fprintf(&b, "\n\nThe user has selected characters %d-%d of this code.", sel.Start, sel.End)
	}

	return b.String()
}
