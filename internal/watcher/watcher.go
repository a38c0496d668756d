// Package watcher watches the configuration file, and the page templates it
// names, and hot reloads the configuration when their content changes.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hiboutik/oauth-client/internal/config"
	log "github.com/sirupsen/logrus"
)

// ReloadFunc applies a freshly loaded configuration. A returned error keeps
// the watcher on the previous content hash so the next write retries.
type ReloadFunc func(*config.Config) error

const configReloadDebounce = 150 * time.Millisecond

// Watcher manages file watching for the configuration and its templates.
type Watcher struct {
	configPath        string
	mu                sync.RWMutex
	config            *config.Config
	watchedFiles      map[string]struct{}
	watchedDirs       map[string]struct{}
	lastHash          string
	configReloadMu    sync.Mutex
	configReloadTimer *time.Timer
	reloadCallback    ReloadFunc
	watcher           *fsnotify.Watcher
	debounce          time.Duration
}

// NewWatcher creates a watcher for the configuration at configPath.
func NewWatcher(configPath string, reloadCallback ReloadFunc) (*Watcher, error) {
	fsw, errNewWatcher := fsnotify.NewWatcher()
	if errNewWatcher != nil {
		return nil, errNewWatcher
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{
		configPath:     abs,
		reloadCallback: reloadCallback,
		watcher:        fsw,
		watchedFiles:   make(map[string]struct{}),
		watchedDirs:    make(map[string]struct{}),
		debounce:       configReloadDebounce,
	}, nil
}

// SetConfig records the configuration currently in use. Its templates are
// watched from the next Start or reload on.
func (w *Watcher) SetConfig(cfg *config.Config) {
	w.mu.Lock()
	w.config = cfg
	w.mu.Unlock()
}

// Config returns the configuration last loaded or set.
func (w *Watcher) Config() *config.Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Start begins watching and processes events until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	return w.start(ctx)
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	w.stopConfigReloadTimer()
	return w.watcher.Close()
}

// Run starts the watcher and blocks until ctx is done, then stops it.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	if err := w.Stop(); err != nil {
		log.WithError(err).Debug("watcher: stop")
	}
	return nil
}
