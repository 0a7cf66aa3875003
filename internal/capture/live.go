package capture

import (
	"context"

	"github.com/tabcoach/tabcoach/pkg/types"
)

// liveResult is the JSON shape every live-probe expression returns.
type liveResult struct {
	Code      string `json:"code"`
	Language  string `json:"language"`
	Selection *struct {
		Start int `json:"start"`
		End   int `json:"end"`
	} `json:"selection"`
}

// liveProbe evaluates a JavaScript expression against the page's in-memory
// editor instance. Most accurate source: it sees the real document model,
// including text scrolled out of view, and can recover the selection.
type liveProbe struct {
	source types.CaptureSource
	expr   string
}

func (p *liveProbe) Source() types.CaptureSource { return p.source }

func (p *liveProbe) Capture(ctx context.Context, scan *Scan) (*types.CodeSnapshot, error) {
	var res *liveResult
	if err := scan.Page().Eval(ctx, p.expr, &res); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	snap := &types.CodeSnapshot{
		Code:     res.Code,
		Language: res.Language,
	}
	if sel := res.Selection; sel != nil && sel.End >= sel.Start {
		snap.Selection = &types.SelectionRange{Start: sel.Start, End: sel.End}
	}

	return snap, nil
}

// MonacoLive reads the first Monaco model via the page's monaco global.
func MonacoLive() Probe {
	return &liveProbe{source: types.SourceMonaco, expr: `(() => {
	if (!window.monaco || !monaco.editor) return null;
	const models = monaco.editor.getModels();
	if (!models || !models.length) return null;
	const model = models[0];
	let sel = null;
	const editors = monaco.editor.getEditors ? monaco.editor.getEditors() : [];
	if (editors.length) {
		const s = editors[0].getSelection();
		if (s) sel = {
			start: model.getOffsetAt(s.getStartPosition()),
			end: model.getOffsetAt(s.getEndPosition()),
		};
	}
	return {
		code: model.getValue(),
		language: model.getLanguageId ? model.getLanguageId() : "",
		selection: sel,
	};
})()`}
}

// CodeMirrorLive reads a CodeMirror 6 EditorView through the cmView handle
// its content element exposes.
func CodeMirrorLive() Probe {
	return &liveProbe{source: types.SourceCodeMirror, expr: `(() => {
	const host = document.querySelector('.cm-content');
	if (!host || !host.cmView) return null;
	const state = host.cmView.view.state;
	const main = state.selection ? state.selection.main : null;
	return {
		code: state.doc.toString(),
		language: "",
		selection: main ? { start: main.from, end: main.to } : null,
	};
})()`}
}

// AceLive reads an Ace editor via the page's ace global.
func AceLive() Probe {
	return &liveProbe{source: types.SourceAce, expr: `(() => {
	const el = document.querySelector('.ace_editor');
	if (!el || !window.ace) return null;
	const editor = ace.edit(el);
	const doc = editor.getSession().getDocument();
	const r = editor.getSelectionRange();
	const mode = editor.getSession().getMode().$id || "";
	return {
		code: editor.getValue(),
		language: mode.split("/").pop(),
		selection: {
			start: doc.positionToIndex(r.start),
			end: doc.positionToIndex(r.end),
		},
	};
})()`}
}
