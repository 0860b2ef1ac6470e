package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"acr/internal/shared/asyncutil"
	"acr/internal/shared/logging"
)

const defaultWatchDebounce = 750 * time.Millisecond

// Watcher watches a runtime config file for changes and calls onReload
// (debounced) with a freshly-loaded RuntimeConfig each time the file
// changes on disk.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   logging.Logger
	onReload func(RuntimeConfig)

	mu      sync.Mutex
	timer   *time.Timer
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	stopped sync.Once
}

// NewWatcher constructs a Watcher for path. onReload is invoked on a
// background goroutine; it must not block indefinitely.
func NewWatcher(path string, logger logging.Logger, onReload func(RuntimeConfig)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: defaultWatchDebounce,
		logger:   logging.OrNop(logger),
		onReload: onReload,
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching the config file's directory (watching the
// directory, not the file, survives editors that replace the file via
// rename rather than in-place write).
func (w *Watcher) Start() error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		_ = fsWatcher.Close()
		return err
	}

	w.mu.Lock()
	w.watcher = fsWatcher
	w.mu.Unlock()

	asyncutil.Go(w.logger, "config.watch", w.watchLoop)
	return nil
}

// Stop terminates the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopped.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		cfg, err := Load(w.path)
		if err != nil {
			w.logger.Warn("config reload failed: %v", err)
			return
		}
		if w.onReload != nil {
			w.onReload(cfg)
		}
	})
}
