// Package types defines the shared data model for the tabcoach coordinator
// and tab observers.
package types

import "strings"

// Site identifies a recognized problem-hosting site.
type Site string

const (
	SiteLeetCode   Site = "leetcode"
	SiteHackerRank Site = "hackerrank"
	SiteCodeforces Site = "codeforces"
	SiteGeneric    Site = "generic"
)

// CaptureSource tags how a code snapshot was obtained.
type CaptureSource string

const (
	SourceMonaco        CaptureSource = "monaco"
	SourceMonacoDOM     CaptureSource = "monaco-dom"
	SourceCodeMirror    CaptureSource = "codemirror"
	SourceCodeMirrorDOM CaptureSource = "codemirror-dom"
	SourceAce           CaptureSource = "ace"
	SourceAceDOM        CaptureSource = "ace-dom"
	SourceTextArea      CaptureSource = "textarea"
	SourceManual        CaptureSource = "manual"
)

// ProblemContext is the problem statement derived from a tab.
// It is replaced as a whole unit, never merged field by field.
type ProblemContext struct {
	Site        Site    `json:"site"`
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Constraints string  `json:"constraints,omitempty"`
	Examples    string  `json:"examples,omitempty"`
	Confidence  float64 `json:"confidence"`
	ExtractedAt int64   `json:"extractedAt"`
}

// SelectionRange is a character-offset selection within captured code.
// End is always >= Start.
type SelectionRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CodeSnapshot is an immutable capture of the editor content in a tab.
type CodeSnapshot struct {
	Source     CaptureSource   `json:"source"`
	Language   string          `json:"language,omitempty"`
	Code       string          `json:"code"`
	Selection  *SelectionRange `json:"selection,omitempty"`
	CapturedAt int64           `json:"capturedAt"`
}

// Valid reports whether the snapshot carries any real content.
// Whitespace-only captures are treated as no snapshot at all.
func (s *CodeSnapshot) Valid() bool {
	return s != nil && strings.TrimSpace(s.Code) != ""
}

// TabState is the durable per-tab snapshot of context and code.
// Fields are last-writer-wins; absent patch fields are left untouched.
type TabState struct {
	Context      *ProblemContext `json:"context"`
	CodeSnapshot *CodeSnapshot   `json:"codeSnapshot"`
}

// TabStatePatch carries only the fields a caller wants to merge.
type TabStatePatch struct {
	Context      *ProblemContext `json:"context,omitempty"`
	CodeSnapshot *CodeSnapshot   `json:"codeSnapshot,omitempty"`
}

// Role is a chat turn role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatHistoryItem is one turn in a tab's conversation record.
type ChatHistoryItem struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}

// HistoryCap is the maximum retained history length per tab. Older items
// are dropped from the front once the cap is exceeded.
const HistoryCap = 30
