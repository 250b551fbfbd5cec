package datasource

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the burst of events a file copy produces.
const DefaultDebounce = 2 * time.Second

// ReloadFunc is invoked once per settled burst of changes.
type ReloadFunc func(ctx context.Context) error

// TargetsFunc returns the files to watch. It is called again after every
// reload so a manifest edit can change the set.
type TargetsFunc func() ([]string, error)

// Watcher triggers a reload when any watched data file changes. Parent
// directories are watched so files replaced by rename are still seen.
type Watcher struct {
	fsw      *fsnotify.Watcher
	targets  TargetsFunc
	reload   ReloadFunc
	debounce time.Duration
	logger   zerolog.Logger

	files map[string]struct{}
	dirs  map[string]struct{}
}

func NewWatcher(targets TargetsFunc, reload ReloadFunc, debounce time.Duration, logger zerolog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		targets:  targets,
		reload:   reload,
		debounce: debounce,
		logger:   logger.With().Str("component", "watcher").Logger(),
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
	}
	if err := w.refresh(); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) refresh() error {
	paths, err := w.targets()
	if err != nil {
		return err
	}
	files := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		files[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Warn().Err(err).Str("dir", dir).Msg("cannot watch directory")
			continue
		}
		w.dirs[dir] = struct{}{}
	}
	w.files = files
	return nil
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

// Run watches until ctx is cancelled. Reloads run on the watcher goroutine,
// so at most one is in flight.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("data file changed")
			timer.Reset(w.debounce)
			pending = true

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := w.reload(ctx); err != nil {
				w.logger.Error().Err(err).Msg("reload after file change failed")
			}
			if err := w.refresh(); err != nil {
				w.logger.Warn().Err(err).Msg("refresh watch list")
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watcher error")
		}
	}
}
