// Package cmd implements the command line modes: serving the callback page,
// the interactive login and the refresh grant.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/hiboutik/oauth-client/internal/auth/hiboutik"
	"github.com/hiboutik/oauth-client/internal/config"
	"github.com/hiboutik/oauth-client/internal/misc"
	"github.com/hiboutik/oauth-client/internal/store"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

// ExportToken renders token as the JSON document written to the token file.
// Expiry is absolute so the file stays meaningful after the process exits.
func ExportToken(cfg *config.Config, token *hiboutik.TokenResult, now time.Time) ([]byte, error) {
	if token == nil || token.IsError() {
		return nil, fmt.Errorf("export token: no token to export")
	}
	doc := []byte(`{}`)
	set := func(path string, value any) error {
		var err error
		doc, err = sjson.SetBytes(doc, path, value)
		return err
	}

	fields := []struct {
		path  string
		value any
	}{
		{"type", "hiboutik"},
		{"account", cfg.Account},
		{"client_id", cfg.ClientID},
		{"access_token", token.AccessToken},
		{"token_type", token.TokenType},
		{"scope", token.Scope},
		{"obtained_at", now.UTC().Format(time.RFC3339)},
	}
	for _, f := range fields {
		if err := set(f.path, f.value); err != nil {
			return nil, fmt.Errorf("export token: %w", err)
		}
	}
	if token.RefreshToken != "" {
		if err := set("refresh_token", token.RefreshToken); err != nil {
			return nil, fmt.Errorf("export token: %w", err)
		}
	}
	if token.ExpiresIn > 0 {
		if err := set("expires_in", token.ExpiresIn); err != nil {
			return nil, fmt.Errorf("export token: %w", err)
		}
		expiry := now.Add(time.Duration(token.ExpiresIn) * time.Second).UTC().Format(time.RFC3339)
		if err := set("expiry", expiry); err != nil {
			return nil, fmt.Errorf("export token: %w", err)
		}
	}
	return doc, nil
}

// SaveToken persists token in the configured store. With the default file
// store and no token file the document is printed instead.
func SaveToken(ctx context.Context, cfg *config.Config, token *hiboutik.TokenResult) error {
	data, err := ExportToken(cfg, token, time.Now())
	if err != nil {
		return err
	}
	misc.LogCredentialSeparator()
	if !persistsTokens(cfg) {
		fmt.Println(string(data))
		return nil
	}

	ts, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := ts.Close(); errClose != nil {
			log.WithError(errClose).Warn("failed to close token store")
		}
	}()
	location, err := ts.Save(ctx, store.TokenID(cfg.Account), data)
	if err != nil {
		return err
	}
	misc.LogSavingCredentials(location)
	return nil
}

// LoadToken reads the token last saved for cfg.Account.
func LoadToken(ctx context.Context, cfg *config.Config) ([]byte, error) {
	if !persistsTokens(cfg) {
		return nil, fmt.Errorf("load token: no token file or token store configured")
	}
	ts, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ts.Close() }()
	return ts.Load(ctx, store.TokenID(cfg.Account))
}

func persistsTokens(cfg *config.Config) bool {
	return cfg.TokenFile != "" || cfg.Store.Backend() != config.StoreFile
}
