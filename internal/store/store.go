// Package store persists exported tokens. The file store writes a local JSON
// file. The PostgreSQL, object storage and git stores keep the token in a
// shared backend so other machines can pick up the latest credential.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hiboutik/oauth-client/internal/config"
	"github.com/hiboutik/oauth-client/internal/misc"
)

// ErrNotFound is returned by Load when no token is stored under the id.
var ErrNotFound = errors.New("store: token not found")

// TokenStore saves and loads token documents by id.
type TokenStore interface {
	// Save stores data under id and returns a human readable location.
	Save(ctx context.Context, id string, data []byte) (string, error)
	Load(ctx context.Context, id string) ([]byte, error)
	Close() error
}

// TokenID is the id a token of account is stored under.
func TokenID(account string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(account)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), ".")
	if name == "" {
		name = "default"
	}
	return "hiboutik-" + name + ".json"
}

// Open returns the store selected by cfg.Store. The file store writes
// cfg.TokenFile, or TokenID files under the working directory when unset.
func Open(ctx context.Context, cfg *config.Config) (TokenStore, error) {
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Store.Backend() {
	case config.StorePostgres:
		return NewPostgresStore(ctx, cfg.Store.Postgres)
	case config.StoreObject:
		return NewObjectStore(cfg.Store.Object)
	case config.StoreGit:
		return NewGitStore(cfg.Store.Git)
	default:
		return &FileStore{Path: cfg.TokenFile}, nil
	}
}

// FileStore keeps one token per file with owner-only permissions.
type FileStore struct {
	// Path is the token file. When empty, or an existing directory, the file
	// is named after the token id.
	Path string
}

func (s *FileStore) resolve(id string) string {
	if s.Path == "" {
		return id
	}
	if info, err := os.Stat(s.Path); err == nil && info.IsDir() {
		return filepath.Join(s.Path, id)
	}
	return s.Path
}

// Save writes data atomically.
func (s *FileStore) Save(_ context.Context, id string, data []byte) (string, error) {
	path := s.resolve(id)
	if err := misc.WriteCredentials(path, data); err != nil {
		return "", fmt.Errorf("file store: %w", err)
	}
	return path, nil
}

// Load reads the token file.
func (s *FileStore) Load(_ context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	return data, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
