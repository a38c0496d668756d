// Package config provides configuration management for the Hiboutik OAuth client.
// It handles loading and parsing YAML configuration files, applies environment
// overrides, and provides structured access to the account credentials, callback
// server settings, logging options and outbound transport settings.
package config

// SDKConfig holds the settings that shape outbound HTTP requests.
type SDKConfig struct {
	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	// Supported schemes are socks5, http and https.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url" env:"PROXY_URL"`

	// UserAgent overrides the User-Agent sent to the token endpoint.
	UserAgent string `yaml:"user-agent,omitempty" json:"user-agent,omitempty" env:"HIBOUTIK_USER_AGENT"`

	// TLSFingerprint selects a browser TLS ClientHello for direct connections.
	// Empty uses the Go TLS stack. Accepted values: firefox, chrome, safari.
	TLSFingerprint string `yaml:"tls-fingerprint,omitempty" json:"tls-fingerprint,omitempty" env:"HIBOUTIK_TLS_FINGERPRINT"`

	// RequestLog logs every outbound request with its response headers.
	RequestLog bool `yaml:"request-log" json:"request-log" env:"HIBOUTIK_REQUEST_LOG"`
}
