package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultScope is requested when no scope is configured.
const DefaultScope = "basic_api"

// DefaultPort is the callback server port used when none is configured.
const DefaultPort = 8317

// DefaultLogMaxSizeMB is the rotation size of main.log.
const DefaultLogMaxSizeMB = 10

// Config is the full application configuration, loaded from a YAML file and
// overridden by environment variables.
type Config struct {
	SDKConfig `yaml:",inline"`

	// Host is the interface the callback server binds to. Empty binds all interfaces.
	Host string `yaml:"host" json:"host" env:"HIBOUTIK_HOST"`

	// Port is the callback server port.
	Port int `yaml:"port" json:"port" env:"HIBOUTIK_PORT"`

	// Debug enables debug level logging.
	Debug bool `yaml:"debug" json:"debug" env:"HIBOUTIK_DEBUG"`

	// LoggingToFile routes logs to a rotating file instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file" env:"HIBOUTIK_LOGGING_TO_FILE"`

	// LogDir is the directory holding main.log when LoggingToFile is set.
	LogDir string `yaml:"log-dir,omitempty" json:"log-dir,omitempty" env:"HIBOUTIK_LOG_DIR"`

	// LogMaxSizeMB is the size at which main.log is rotated.
	LogMaxSizeMB int `yaml:"log-max-size-mb,omitempty" json:"log-max-size-mb,omitempty" env:"HIBOUTIK_LOG_MAX_SIZE_MB"`

	// LogMaxBackups caps the number of rotated files kept. Zero keeps all of them.
	LogMaxBackups int `yaml:"log-max-backups,omitempty" json:"log-max-backups,omitempty" env:"HIBOUTIK_LOG_MAX_BACKUPS"`

	// LogMaxAgeDays removes rotated files older than this many days. Zero keeps them.
	LogMaxAgeDays int `yaml:"log-max-age-days,omitempty" json:"log-max-age-days,omitempty" env:"HIBOUTIK_LOG_MAX_AGE_DAYS"`

	// Account is the Hiboutik account name, as in https://<account>.hiboutik.com.
	Account string `yaml:"account" json:"account" env:"HIBOUTIK_ACCOUNT"`

	// ClientID is the OAuth client identifier issued by the provider.
	ClientID string `yaml:"client-id" json:"client-id" env:"HIBOUTIK_CLIENT_ID"`

	// ClientSecret is the OAuth client secret. It also keys the state HMAC.
	ClientSecret string `yaml:"client-secret" json:"-" env:"HIBOUTIK_CLIENT_SECRET"`

	// Scope is the space separated list of requested scopes.
	Scope string `yaml:"scope" json:"scope" env:"HIBOUTIK_SCOPE"`

	// ProviderHost is appended to the account name to build endpoint URLs.
	// Empty uses the public Hiboutik host.
	ProviderHost string `yaml:"provider-host,omitempty" json:"provider-host,omitempty" env:"HIBOUTIK_PROVIDER_HOST"`

	// BaseURL replaces the whole https://<account><provider-host> prefix.
	// It exists for sandboxes and tests.
	BaseURL string `yaml:"base-url,omitempty" json:"base-url,omitempty" env:"HIBOUTIK_BASE_URL"`

	// TokenFile is where the CLI writes an obtained token. Empty prints it instead.
	TokenFile string `yaml:"token-file,omitempty" json:"token-file,omitempty" env:"HIBOUTIK_TOKEN_FILE"`

	// Templates points at optional html/template files for the two pages.
	Templates TemplatesConfig `yaml:"templates,omitempty" json:"templates,omitempty"`

	// Store selects a shared backend for exported tokens instead of TokenFile.
	Store StoreConfig `yaml:"token-store,omitempty" json:"token-store,omitempty"`
}

// TemplatesConfig names template files used to render the install and result pages.
type TemplatesConfig struct {
	Install string `yaml:"install,omitempty" json:"install,omitempty" env:"HIBOUTIK_TEMPLATE_INSTALL"`
	Result  string `yaml:"result,omitempty" json:"result,omitempty" env:"HIBOUTIK_TEMPLATE_RESULT"`
}

// LoadConfig reads the YAML configuration at configFile and applies
// environment overrides. The file must exist.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional behaves like LoadConfig but tolerates a missing or empty
// path when optional is true, in which case the configuration comes from
// defaults and the environment only.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := &Config{}

	if strings.TrimSpace(configFile) != "" {
		data, err := os.ReadFile(configFile)
		switch {
		case err == nil:
			if err = yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case optional && errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !optional {
		return nil, fmt.Errorf("config file path is required")
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.Scope) == "" {
		cfg.Scope = DefaultScope
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.LogMaxSizeMB <= 0 {
		cfg.LogMaxSizeMB = DefaultLogMaxSizeMB
	}
	cfg.TLSFingerprint = strings.ToLower(strings.TrimSpace(cfg.TLSFingerprint))
}

// Validate reports the first missing field required to run the OAuth flow.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch {
	case strings.TrimSpace(cfg.Account) == "":
		return fmt.Errorf("config: account is required")
	case strings.TrimSpace(cfg.ClientID) == "":
		return fmt.Errorf("config: client-id is required")
	case cfg.ClientSecret == "":
		return fmt.Errorf("config: client-secret is required")
	}
	if cfg.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", cfg.Port)
	}
	return cfg.Store.Validate()
}

// Addr returns the listen address of the callback server.
func (cfg *Config) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}
