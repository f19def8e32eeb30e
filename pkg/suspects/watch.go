package suspects

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports content changes of one locale file. Writers publish by
// rename, so the directory is watched rather than the file itself.
type Watcher struct {
	store    *Store
	code     string
	debounce time.Duration
	log      *zap.Logger
	last     string
}

// NewWatcher creates a watcher for a locale. It does nothing until Run.
func NewWatcher(store *Store, code string, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{store: store, code: code, debounce: 250 * time.Millisecond, log: log}
}

// Run blocks until ctx is done, calling onChange with the freshly loaded list
// whenever the file's canonical content changes. The fsnotify handle is
// released on every exit path.
func (w *Watcher) Run(ctx context.Context, onChange func([]Suspect)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.store.Root()); err != nil {
		return fmt.Errorf("watch %s: %w", w.store.Root(), err)
	}
	if d, err := w.store.LocaleDigest(w.code); err == nil {
		w.last = d
	}

	target := w.code + ".json"
	var fire <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Suspect watcher error", zap.String("locale", w.code), zap.Error(err))
		case <-fire:
			fire = nil
			w.reload(onChange)
		}
	}
}

func (w *Watcher) reload(onChange func([]Suspect)) {
	digest, err := w.store.LocaleDigest(w.code)
	if err != nil {
		w.log.Warn("Reading changed locale file", zap.String("locale", w.code), zap.Error(err))
		return
	}
	if digest == w.last {
		return
	}
	list, err := w.store.Locale(w.code)
	if err != nil {
		w.log.Warn("Reloading locale file", zap.String("locale", w.code), zap.Error(err))
		return
	}
	w.last = digest
	w.log.Info("Locale file changed", zap.String("locale", w.code), zap.Int("suspects", len(list)))
	onChange(list)
}
