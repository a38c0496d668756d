// Package browser hands the authorization URL to the user: it opens the
// default web browser, or copies the URL to the clipboard when no browser
// should or can be used.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// linuxBrowsers are tried in order when open-golang fails on Linux.
var linuxBrowsers = []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"}

// OpenURL opens url in the default web browser. It first uses open-golang
// and falls back to platform commands.
func OpenURL(url string) error {
	err := open.Run(url)
	if err == nil {
		log.Debug("opened URL using open-golang")
		return nil
	}
	log.Debugf("open-golang failed: %v, trying platform-specific commands", err)

	cmd, err := platformCommand(runtime.GOOS, url, exec.LookPath)
	if err != nil {
		return err
	}
	log.Debugf("running command: %s %v", cmd.Path, cmd.Args[1:])
	if err = cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	return nil
}

func platformCommand(goos, url string, lookPath func(string) (string, error)) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		return exec.Command("open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	case "linux", "freebsd", "openbsd", "netbsd":
		for _, name := range linuxBrowsers {
			if path, err := lookPath(name); err == nil {
				return exec.Command(path, url), nil
			}
		}
		return nil, fmt.Errorf("no suitable browser found on %s", goos)
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", goos)
	}
}

// CopyURL puts url on the system clipboard.
func CopyURL(url string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not supported on this system")
	}
	if err := clipboard.WriteAll(url); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

// Present shows url to the user. With openBrowser it tries the browser
// first; otherwise, or when that fails, the URL is copied to the clipboard.
// The URL is always printed so it can be copied by hand.
func Present(url string, openBrowser bool) {
	fmt.Printf("Open this URL to authorize the application:\n\n  %s\n\n", url)
	if openBrowser {
		err := OpenURL(url)
		if err == nil {
			return
		}
		log.Warnf("could not open the browser: %v", err)
	}
	if err := CopyURL(url); err != nil {
		log.Debugf("clipboard unavailable: %v", err)
		return
	}
	fmt.Println("The URL has been copied to the clipboard.")
}
