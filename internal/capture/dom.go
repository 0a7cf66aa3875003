package capture

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tabcoach/tabcoach/pkg/types"
)

// minTextAreaLen is the minimum non-whitespace content length for the
// generic textarea heuristic to consider an element.
const minTextAreaLen = 20

// domProbe reconstructs editor text from rendered line nodes when the live
// object is out of reach (cross-context isolation). It cannot recover a
// meaningful selection.
type domProbe struct {
	source  types.CaptureSource
	capture func(doc *goquery.Document) string
}

func (p *domProbe) Source() types.CaptureSource { return p.source }

func (p *domProbe) Capture(ctx context.Context, scan *Scan) (*types.CodeSnapshot, error) {
	doc, err := scan.Doc(ctx)
	if err != nil {
		return nil, err
	}

	code := p.capture(doc)
	if code == "" {
		return nil, nil
	}

	return &types.CodeSnapshot{Code: code}, nil
}

// MonacoDOM reads Monaco's rendered view lines. Monaco virtualizes and
// absolutely positions lines, so document order is not text order: lines are
// sorted by their top offset before joining.
func MonacoDOM() Probe {
	return &domProbe{source: types.SourceMonacoDOM, capture: func(doc *goquery.Document) string {
		type line struct {
			top  float64
			text string
		}

		var lines []line
		doc.Find(".monaco-editor .view-lines .view-line").Each(func(_ int, sel *goquery.Selection) {
			lines = append(lines, line{
				top:  parseTopPx(sel.AttrOr("style", "")),
				text: normalizeLine(sel.Text()),
			})
		})
		if len(lines) == 0 {
			return ""
		}

		sort.SliceStable(lines, func(i, j int) bool { return lines[i].top < lines[j].top })

		parts := make([]string, len(lines))
		for i, l := range lines {
			parts[i] = l.text
		}
		return strings.Join(parts, "\n")
	}}
}

// CodeMirrorDOM reads CodeMirror's rendered lines, supporting both the v6
// and v5 class layouts.
func CodeMirrorDOM() Probe {
	return &domProbe{source: types.SourceCodeMirrorDOM, capture: func(doc *goquery.Document) string {
		sel := doc.Find(".cm-content .cm-line")
		if sel.Length() == 0 {
			sel = doc.Find(".CodeMirror-code .CodeMirror-line")
		}
		return joinLines(sel)
	}}
}

// AceDOM reads Ace's rendered text layer.
func AceDOM() Probe {
	return &domProbe{source: types.SourceAceDOM, capture: func(doc *goquery.Document) string {
		return joinLines(doc.Find(".ace_text-layer .ace_line"))
	}}
}

// TextAreaHeuristic picks the text-input-like element with the most
// non-whitespace content. Last resort for pages with no recognized editor.
type textAreaProbe struct{}

// TextAreaHeuristic returns the generic fallback probe.
func TextAreaHeuristic() Probe { return &textAreaProbe{} }

func (p *textAreaProbe) Source() types.CaptureSource { return types.SourceTextArea }

func (p *textAreaProbe) Capture(ctx context.Context, scan *Scan) (*types.CodeSnapshot, error) {
	doc, err := scan.Doc(ctx)
	if err != nil {
		return nil, err
	}

	var best string
	var bestLen int

	consider := func(text string) {
		n := len(strings.Join(strings.Fields(text), ""))
		if n >= minTextAreaLen && n > bestLen {
			best, bestLen = text, n
		}
	}

	doc.Find("textarea").Each(func(_ int, sel *goquery.Selection) {
		if hidden(sel) {
			return
		}
		consider(sel.Text())
	})
	doc.Find(`[contenteditable="true"]`).Each(func(_ int, sel *goquery.Selection) {
		if hidden(sel) {
			return
		}
		consider(normalizeLine(sel.Text()))
	})

	if best == "" {
		return nil, nil
	}

	return &types.CodeSnapshot{Code: best}, nil
}

func joinLines(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}

	parts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, line *goquery.Selection) {
		parts = append(parts, normalizeLine(line.Text()))
	})
	return strings.Join(parts, "\n")
}

// hidden filters out elements the static HTML already marks invisible.
func hidden(sel *goquery.Selection) bool {
	style := strings.ReplaceAll(sel.AttrOr("style", ""), " ", "")
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return true
	}
	return sel.AttrOr("aria-hidden", "") == "true"
}

// parseTopPx extracts the numeric top offset from an inline style.
func parseTopPx(style string) float64 {
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok || strings.TrimSpace(k) != "top" {
			continue
		}
		v = strings.TrimSuffix(strings.TrimSpace(v), "px")
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}
