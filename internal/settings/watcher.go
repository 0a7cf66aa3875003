package settings

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tabcoach/tabcoach/internal/event"
	"github.com/tabcoach/tabcoach/internal/logging"
)

// debounceWindow coalesces rapid write events from editors that save in
// multiple steps.
const debounceWindow = 250 * time.Millisecond

// Watcher republishes a SettingsUpdated event when the settings file is
// edited outside the API, so connected UIs pick up manual changes.
type Watcher struct {
	svc     *Service
	bus     *event.Bus
	watcher *fsnotify.Watcher
	target  string
}

// NewWatcher watches the settings file inside stateDir.
func NewWatcher(svc *Service, bus *event.Bus, stateDir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: the store writes via tmp+rename, which replaces
	// the inode a file-level watch would be pinned to.
	if err := fw.Add(stateDir); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		svc:     svc,
		bus:     bus,
		watcher: fw,
		target:  filepath.Join(stateDir, "settings.json"),
	}, nil
}

// Run processes filesystem events until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			cur, err := w.svc.Get(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("settings reload failed")
				continue
			}
			w.bus.Publish(event.Event{Type: event.SettingsUpdated, Data: cur})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Msg("settings watcher error")
		}
	}
}
