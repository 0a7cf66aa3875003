// Package observer attaches to one browser tab and feeds the coordinator:
// it periodically extracts the problem context and captures the editor
// content, publishing only what changed since the last cycle.
package observer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/tabcoach/tabcoach/internal/capture"
	"github.com/tabcoach/tabcoach/internal/extract"
	"github.com/tabcoach/tabcoach/internal/logging"
	"github.com/tabcoach/tabcoach/pkg/types"
)

// DefaultScanInterval is how often the tab is rescanned when the caller does
// not override it.
const DefaultScanInterval = 5 * time.Second

// PageSource is everything a scan needs from the browser tab.
type PageSource interface {
	capture.PageQuerier
	URL(ctx context.Context) (string, error)
}

// Observer drives the scan loop for one tab.
type Observer struct {
	tabID    string
	page     PageSource
	client   *Client
	pipeline *capture.Pipeline
	interval time.Duration

	// Suppression state. Guarded by mu because a forced rescan from the
	// back-channel can race the ticker.
	mu            sync.Mutex
	lastSignature string
	lastSource    types.CaptureSource
	lastCode      string
}

// New creates an observer for one tab. A zero interval selects the default.
func New(page PageSource, client *Client, interval time.Duration) *Observer {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	return &Observer{
		tabID:    uuid.NewString(),
		page:     page,
		client:   client,
		pipeline: capture.DefaultPipeline(),
		interval: interval,
	}
}

// TabID returns the observer's generated tab identifier.
func (o *Observer) TabID() string { return o.tabID }

// Run scans until the context is canceled. The back-channel is maintained
// concurrently with automatic reconnection.
func (o *Observer) Run(ctx context.Context) error {
	go o.maintainBackChannel(ctx)

	o.scan(ctx, false)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.scan(ctx, false)
		}
	}
}

// scan runs one cycle: extract the context, capture the code, publish what
// changed. forced bypasses suppression and returns the context either way.
func (o *Observer) scan(ctx context.Context, forced bool) *types.ProblemContext {
	scanner := capture.NewScan(o.page)

	pctx := o.extractContext(ctx, scanner, forced)
	o.captureCode(ctx, scanner, forced)
	return pctx
}

func (o *Observer) extractContext(ctx context.Context, scanner *capture.Scan, forced bool) *types.ProblemContext {
	url, err := o.page.URL(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("read page url failed")
		return nil
	}

	doc, err := scanner.Doc(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("fetch page html failed")
		return nil
	}

	pctx := extract.Extract(url, doc)
	sig := extract.Signature(pctx)

	o.mu.Lock()
	unchanged := sig == o.lastSignature
	o.mu.Unlock()

	if unchanged && !forced {
		return pctx
	}

	if err := o.client.PublishContext(ctx, o.tabID, pctx); err != nil {
		logging.Warn().Err(err).Str("tabId", o.tabID).Msg("publish context failed")
		return pctx
	}

	o.mu.Lock()
	o.lastSignature = sig
	o.mu.Unlock()

	logging.Debug().
		Str("tabId", o.tabID).
		Str("site", string(pctx.Site)).
		Float64("confidence", pctx.Confidence).
		Msg("context published")
	return pctx
}

func (o *Observer) captureCode(ctx context.Context, scanner *capture.Scan, forced bool) {
	snap := o.pipeline.RunScan(ctx, scanner)
	if !snap.Valid() {
		return
	}

	o.mu.Lock()
	unchanged := snap.Source == o.lastSource && snap.Code == o.lastCode
	o.mu.Unlock()

	if unchanged && !forced {
		return
	}

	if err := o.client.PublishSnapshot(ctx, o.tabID, snap); err != nil {
		logging.Warn().Err(err).Str("tabId", o.tabID).Msg("publish snapshot failed")
		return
	}

	o.mu.Lock()
	o.lastSource = snap.Source
	o.lastCode = snap.Code
	o.mu.Unlock()

	logging.Debug().
		Str("tabId", o.tabID).
		Str("source", string(snap.Source)).
		Int("bytes", len(snap.Code)).
		Msg("snapshot published")
}

// maintainBackChannel keeps the command channel alive, reconnecting with
// backoff until the context dies.
func (o *Observer) maintainBackChannel(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry forever

	rescan := func(ctx context.Context) (*types.ProblemContext, error) {
		pctx := o.scan(ctx, true)
		if pctx == nil {
			return nil, errors.New("context extraction failed")
		}
		return pctx, nil
	}

	_ = backoff.Retry(func() error {
		err := o.client.RunBackChannel(ctx, o.tabID, rescan)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		logging.Warn().Err(err).Msg("back-channel dropped, reconnecting")
		return err
	}, backoff.WithContext(b, ctx))
}
