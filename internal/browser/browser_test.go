package browser

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestPlatformCommand(t *testing.T) {
	const url = "https://shop.hiboutik.com/oauth_api/authorize/"
	notFound := func(string) (string, error) { return "", errors.New("not found") }

	cmd, err := platformCommand("darwin", url, notFound)
	if err != nil || filepath.Base(cmd.Args[0]) != "open" || cmd.Args[1] != url {
		t.Fatalf("darwin: %v %v", cmd, err)
	}

	cmd, err = platformCommand("windows", url, notFound)
	if err != nil || cmd.Args[1] != "url.dll,FileProtocolHandler" || cmd.Args[2] != url {
		t.Fatalf("windows: %v %v", cmd, err)
	}

	onlyFirefox := func(name string) (string, error) {
		if name == "firefox" {
			return "/usr/bin/firefox", nil
		}
		return "", errors.New("not found")
	}
	cmd, err = platformCommand("linux", url, onlyFirefox)
	if err != nil || cmd.Path != "/usr/bin/firefox" || cmd.Args[1] != url {
		t.Fatalf("linux: %v %v", cmd, err)
	}

	if _, err = platformCommand("linux", url, notFound); err == nil {
		t.Fatal("expected error without any browser")
	}
	if _, err = platformCommand("plan9", url, notFound); err == nil {
		t.Fatal("expected error for an unsupported OS")
	}
}
