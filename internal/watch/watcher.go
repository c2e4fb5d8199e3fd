// Package watch reports modifications of an externally owned outline file.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events one save produces.
const DefaultDebounce = 200 * time.Millisecond

// Kind classifies a settled change.
type Kind string

const (
	Changed Kind = "changed"
	Removed Kind = "removed"
)

// Handler is called once per settled burst of events.
type Handler func(kind Kind, path string)

// Watch follows the file at path until ctx is cancelled. The parent
// directory is watched rather than the file itself, so editors that save
// by writing a temp file and renaming it over the original are still seen.
// Events are debounced; the handler receives the last kind observed.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, h Handler) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: resolve %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch: add %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("watcher: started", slog.String("path", abs))

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		pending Kind
	)
	schedule := func(k Kind) {
		pending = k
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			logger.Debug("watcher: change settled", slog.String("path", abs), slog.String("kind", string(pending)))
			if h != nil {
				h(pending, abs)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(Changed)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				schedule(Removed)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
