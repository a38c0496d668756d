package config

import (
	"fmt"
	"strings"
)

// Token store backends.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreObject   = "object"
	StoreGit      = "git"
)

// StoreConfig selects where exported tokens are persisted. When Type is
// empty the backend is inferred from whichever connection setting is present.
type StoreConfig struct {
	Type     string              `yaml:"type,omitempty" json:"type,omitempty" env:"TOKEN_STORE"`
	Postgres PostgresStoreConfig `yaml:"postgres,omitempty" json:"postgres,omitempty"`
	Object   ObjectStoreConfig   `yaml:"object,omitempty" json:"object,omitempty"`
	Git      GitStoreConfig      `yaml:"git,omitempty" json:"git,omitempty"`
}

// PostgresStoreConfig keeps tokens in a PostgreSQL table.
type PostgresStoreConfig struct {
	DSN    string `yaml:"dsn,omitempty" json:"-" env:"PGSTORE_DSN"`
	Schema string `yaml:"schema,omitempty" json:"schema,omitempty" env:"PGSTORE_SCHEMA"`
	Table  string `yaml:"table,omitempty" json:"table,omitempty" env:"PGSTORE_TABLE"`
}

// ObjectStoreConfig keeps tokens in an S3 compatible bucket.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" env:"OBJECTSTORE_ENDPOINT"`
	Bucket    string `yaml:"bucket,omitempty" json:"bucket,omitempty" env:"OBJECTSTORE_BUCKET"`
	AccessKey string `yaml:"access-key,omitempty" json:"-" env:"OBJECTSTORE_ACCESS_KEY"`
	SecretKey string `yaml:"secret-key,omitempty" json:"-" env:"OBJECTSTORE_SECRET_KEY"`
	Region    string `yaml:"region,omitempty" json:"region,omitempty" env:"OBJECTSTORE_REGION"`
	Prefix    string `yaml:"prefix,omitempty" json:"prefix,omitempty" env:"OBJECTSTORE_PREFIX"`
	UseSSL    bool   `yaml:"use-ssl,omitempty" json:"use-ssl,omitempty" env:"OBJECTSTORE_USE_SSL"`
	PathStyle bool   `yaml:"path-style,omitempty" json:"path-style,omitempty" env:"OBJECTSTORE_PATH_STYLE"`
}

// GitStoreConfig commits tokens to a git repository and pushes them.
type GitStoreConfig struct {
	URL       string `yaml:"url,omitempty" json:"url,omitempty" env:"GITSTORE_GIT_URL"`
	Username  string `yaml:"username,omitempty" json:"username,omitempty" env:"GITSTORE_GIT_USERNAME"`
	Password  string `yaml:"password,omitempty" json:"-" env:"GITSTORE_GIT_TOKEN"`
	LocalPath string `yaml:"local-path,omitempty" json:"local-path,omitempty" env:"GITSTORE_LOCAL_PATH"`
}

// Backend returns the configured backend, inferring it when Type is empty.
func (s StoreConfig) Backend() string {
	if t := strings.ToLower(strings.TrimSpace(s.Type)); t != "" {
		return t
	}
	switch {
	case strings.TrimSpace(s.Postgres.DSN) != "":
		return StorePostgres
	case strings.TrimSpace(s.Git.URL) != "":
		return StoreGit
	case strings.TrimSpace(s.Object.Endpoint) != "":
		return StoreObject
	default:
		return StoreFile
	}
}

// Validate reports a backend that is selected but missing its connection settings.
func (s StoreConfig) Validate() error {
	switch s.Backend() {
	case StoreFile:
	case StorePostgres:
		if strings.TrimSpace(s.Postgres.DSN) == "" {
			return fmt.Errorf("config: token-store.postgres.dsn is required")
		}
	case StoreObject:
		if strings.TrimSpace(s.Object.Endpoint) == "" || strings.TrimSpace(s.Object.Bucket) == "" {
			return fmt.Errorf("config: token-store.object needs endpoint and bucket")
		}
	case StoreGit:
		if strings.TrimSpace(s.Git.URL) == "" {
			return fmt.Errorf("config: token-store.git.url is required")
		}
	default:
		return fmt.Errorf("config: unknown token-store type %q", s.Type)
	}
	return nil
}
