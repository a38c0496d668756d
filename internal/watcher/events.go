package watcher

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

func (w *Watcher) start(ctx context.Context) error {
	if err := w.refreshWatchList(); err != nil {
		log.Errorf("failed to watch config file %s: %v", w.configPath, err)
		return err
	}
	if hash, err := w.contentHash(); err == nil {
		w.mu.Lock()
		w.lastHash = hash
		w.mu.Unlock()
	}
	log.Debugf("watching config file: %s", w.configPath)

	go w.processEvents(ctx)
	return nil
}

// refreshWatchList watches the directories holding the config file and its
// templates. Directories are watched instead of files so that editors which
// replace the file on save keep being noticed.
func (w *Watcher) refreshWatchList() error {
	files := []string{w.configPath}
	if cfg := w.Config(); cfg != nil {
		for _, tmpl := range []string{cfg.Templates.Install, cfg.Templates.Result} {
			if strings.TrimSpace(tmpl) == "" {
				continue
			}
			if abs, err := filepath.Abs(tmpl); err == nil {
				files = append(files, abs)
			}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.watchedFiles = make(map[string]struct{}, len(files))
	for _, f := range files {
		w.watchedFiles[normalizePath(f)] = struct{}{}
		dir := filepath.Dir(f)
		if _, ok := w.watchedDirs[dir]; ok {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		w.watchedDirs[dir] = struct{}{}
	}
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("file watcher error: %v", errWatch)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	ops := fsnotify.Write | fsnotify.Create | fsnotify.Rename
	if event.Op&ops == 0 {
		return
	}
	name := normalizePath(event.Name)
	w.mu.RLock()
	_, watched := w.watchedFiles[name]
	w.mu.RUnlock()
	if !watched {
		return
	}
	log.Debugf("file system event detected: %s %s", event.Op.String(), event.Name)
	w.scheduleConfigReload()
}

func normalizePath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	cleaned := filepath.Clean(trimmed)
	if runtime.GOOS == "windows" {
		cleaned = strings.TrimPrefix(cleaned, `\\?\`)
		cleaned = strings.ToLower(cleaned)
	}
	return cleaned
}
