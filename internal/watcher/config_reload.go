package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/hiboutik/oauth-client/internal/config"
	"github.com/hiboutik/oauth-client/internal/util"
	log "github.com/sirupsen/logrus"
)

func (w *Watcher) stopConfigReloadTimer() {
	w.configReloadMu.Lock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
		w.configReloadTimer = nil
	}
	w.configReloadMu.Unlock()
}

func (w *Watcher) scheduleConfigReload() {
	w.configReloadMu.Lock()
	defer w.configReloadMu.Unlock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
	}
	w.configReloadTimer = time.AfterFunc(w.debounce, func() {
		w.configReloadMu.Lock()
		w.configReloadTimer = nil
		w.configReloadMu.Unlock()
		w.reloadConfigIfChanged()
	})
}

// contentHash hashes the config file followed by every watched template.
func (w *Watcher) contentHash() (string, error) {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("config file is empty")
	}
	h := sha256.New()
	h.Write(data)

	w.mu.RLock()
	files := make([]string, 0, len(w.watchedFiles))
	for f := range w.watchedFiles {
		if f != normalizePath(w.configPath) {
			files = append(files, f)
		}
	}
	w.mu.RUnlock()
	sort.Strings(files)
	for _, f := range files {
		h.Write([]byte{0})
		if content, errRead := os.ReadFile(f); errRead == nil {
			h.Write(content)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (w *Watcher) reloadConfigIfChanged() {
	newHash, err := w.contentHash()
	if err != nil {
		log.Debugf("skipping config reload: %v", err)
		return
	}

	w.mu.RLock()
	currentHash := w.lastHash
	w.mu.RUnlock()
	if currentHash != "" && currentHash == newHash {
		log.Debugf("config content unchanged (hash match), skipping reload")
		return
	}

	log.Infof("config changed, reloading: %s", w.configPath)
	if !w.reloadConfig() {
		return
	}
	if err = w.refreshWatchList(); err != nil {
		log.WithError(err).Warn("failed to watch template files")
	}
	// Template paths may have changed with the reload.
	if finalHash, errHash := w.contentHash(); errHash == nil {
		newHash = finalHash
	}
	w.mu.Lock()
	w.lastHash = newHash
	w.mu.Unlock()
}

func (w *Watcher) reloadConfig() bool {
	newConfig, errLoadConfig := config.LoadConfig(w.configPath)
	if errLoadConfig != nil {
		log.Errorf("failed to reload config: %v", errLoadConfig)
		return false
	}

	oldConfig := w.Config()
	if w.reloadCallback != nil {
		if err := w.reloadCallback(newConfig); err != nil {
			log.Errorf("failed to apply reloaded config: %v", err)
			return false
		}
	}
	w.SetConfig(newConfig)

	util.SetLogLevel(newConfig)
	if oldConfig != nil {
		if changed := changedFields(oldConfig, newConfig); len(changed) > 0 {
			log.Infof("config reloaded, changed: %s", strings.Join(changed, ", "))
		} else {
			log.Debug("config reloaded, no material field changes")
		}
	}
	return true
}

// changedFields lists the yaml keys whose values differ between a and b.
func changedFields(a, b *config.Config) []string {
	var out []string
	collectChanges(reflect.ValueOf(*a), reflect.ValueOf(*b), "", &out)
	return out
}

func collectChanges(a, b reflect.Value, prefix string, out *[]string) {
	t := a.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("yaml"), ",")
		name := tag[0]
		inline := len(tag) > 1 && tag[1] == "inline"

		av, bv := a.Field(i), b.Field(i)
		if field.Type.Kind() == reflect.Struct {
			nested := prefix
			if !inline {
				nested = prefix + name + "."
			}
			collectChanges(av, bv, nested, out)
			continue
		}
		if name == "" || name == "-" {
			continue
		}
		if !reflect.DeepEqual(av.Interface(), bv.Interface()) {
			*out = append(*out, prefix+name)
		}
	}
}
