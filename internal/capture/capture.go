// Package capture reads the code the user is editing out of the hosting
// page. A fixed-priority list of probes is tried each scan: live editor
// objects first, rendered-DOM reconstruction when the live object is
// unreachable, then a generic textarea heuristic. The first probe returning
// a non-empty result wins; probes never compete on quality within a cycle.
package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tabcoach/tabcoach/internal/logging"
	"github.com/tabcoach/tabcoach/pkg/types"
)

// PageQuerier is the boundary between probes and the hosting page. The
// observer backs it with CDP; tests back it with canned values.
type PageQuerier interface {
	// Eval runs a JavaScript expression in the page and decodes the JSON
	// result into out. A null result decodes to the zero value.
	Eval(ctx context.Context, expr string, out any) error

	// HTML returns the page's rendered outer HTML.
	HTML(ctx context.Context) (string, error)
}

// Scan caches per-cycle page reads so several DOM probes share one HTML
// fetch and parse.
type Scan struct {
	page PageQuerier

	once   sync.Once
	doc    *goquery.Document
	docErr error
}

// NewScan starts a scan cycle over the page.
func NewScan(page PageQuerier) *Scan {
	return &Scan{page: page}
}

// Page returns the underlying querier.
func (s *Scan) Page() PageQuerier { return s.page }

// Doc returns the parsed page HTML, fetching it on first use.
func (s *Scan) Doc(ctx context.Context) (*goquery.Document, error) {
	s.once.Do(func() {
		html, err := s.page.HTML(ctx)
		if err != nil {
			s.docErr = err
			return
		}
		s.doc, s.docErr = goquery.NewDocumentFromReader(strings.NewReader(html))
	})
	return s.doc, s.docErr
}

// Probe attempts one capture strategy. Failures are silent: a probe that
// cannot see its editor returns (nil, nil) or an error, and the pipeline
// moves on.
type Probe interface {
	Source() types.CaptureSource
	Capture(ctx context.Context, scan *Scan) (*types.CodeSnapshot, error)
}

// Pipeline is the ordered probe list.
type Pipeline struct {
	probes []Probe
}

// NewPipeline creates a pipeline with the given probes, tried in order.
func NewPipeline(probes ...Probe) *Pipeline {
	return &Pipeline{probes: probes}
}

// DefaultPipeline returns the standard probe ordering: live editor readers,
// then their rendered-DOM fallbacks, then the generic textarea heuristic.
func DefaultPipeline() *Pipeline {
	return NewPipeline(
		MonacoLive(),
		CodeMirrorLive(),
		AceLive(),
		MonacoDOM(),
		CodeMirrorDOM(),
		AceDOM(),
		TextAreaHeuristic(),
	)
}

// Run executes one scan cycle and returns the first valid snapshot, or nil
// when no probe produced one.
func (p *Pipeline) Run(ctx context.Context, page PageQuerier) *types.CodeSnapshot {
	return p.RunScan(ctx, NewScan(page))
}

// RunScan is Run over a caller-provided scan, letting the caller share the
// cached page fetch with other consumers in the same cycle.
func (p *Pipeline) RunScan(ctx context.Context, scan *Scan) *types.CodeSnapshot {
	for _, probe := range p.probes {
		snap, err := probe.Capture(ctx, scan)
		if err != nil {
			logging.Debug().Err(err).
				Str("source", string(probe.Source())).
				Msg("capture probe failed")
			continue
		}
		if !snap.Valid() {
			continue
		}

		snap.Source = probe.Source()
		snap.CapturedAt = time.Now().UnixMilli()
		return snap
	}

	return nil
}

// normalizeLine replaces the non-breaking spaces editors render for
// indentation with regular spaces.
func normalizeLine(s string) string {
	return strings.ReplaceAll(s, "\u00a0", " ")
}
