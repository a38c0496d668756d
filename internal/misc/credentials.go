// Package misc holds small helpers shared by the command line entry points:
// pasted callback parsing and token file handling.
package misc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Separator used to visually group related log lines.
var credentialSeparator = strings.Repeat("-", 67)

// LogSavingCredentials emits a consistent message when persisting a token.
func LogSavingCredentials(path string) {
	if path == "" {
		return
	}
	fmt.Printf("Saving token to %s\n", filepath.Clean(path))
}

// LogCredentialSeparator adds a visual separator to group token handling logs.
func LogCredentialSeparator() {
	log.Debug(credentialSeparator)
}

// WriteCredentials writes data to path with owner-only permissions. The
// content is written to a temporary file in the same directory first and
// renamed into place.
func WriteCredentials(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("create temporary token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if _, errStat := os.Stat(tmpName); errStat == nil {
			if errRemove := os.Remove(tmpName); errRemove != nil {
				log.WithError(errRemove).Warn("failed to remove temporary token file")
			}
		}
	}()

	if err = tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync token file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename token file: %w", err)
	}
	return nil
}
