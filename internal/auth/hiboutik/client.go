// Package hiboutik implements the OAuth2 authorization-code flow against a
// Hiboutik account: it signs and verifies the state token, builds the
// authorize redirect, exchanges codes and refresh tokens at the token
// endpoint and hands the outcome to install/result renderers.
package hiboutik

import (
	"strings"
	"time"

	"github.com/hiboutik/oauth-client/internal/config"
	"github.com/hiboutik/oauth-client/internal/httpreq"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultProviderHost is appended to the account name to form the API base.
	DefaultProviderHost = ".hiboutik.com/oauth_api"
	// DefaultScope is requested when SetScope is never called.
	DefaultScope = config.DefaultScope

	authorizePath = "/authorize/"
	tokenPath     = "/token.php"
)

// ClientConfig holds the values one flow is signed and exchanged with.
// Only Scope changes after construction.
type ClientConfig struct {
	Account      string `json:"account"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
	Scope        string `json:"scope"`
	ProviderHost string `json:"provider_host,omitempty"`
	// BaseURL, when set, replaces https://<account><ProviderHost>.
	BaseURL string `json:"base_url,omitempty"`
	// Timestamp is the Unix time captured when the client was built.
	Timestamp int64 `json:"timestamp"`
}

func (c ClientConfig) base() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	host := c.ProviderHost
	if host == "" {
		host = DefaultProviderHost
	}
	return "https://" + c.Account + host
}

// AuthorizeEndpoint returns the provider's authorize URL.
func (c ClientConfig) AuthorizeEndpoint() string { return c.base() + authorizePath }

// TokenEndpoint returns the provider's token URL.
func (c ClientConfig) TokenEndpoint() string { return c.base() + tokenPath }

// TransportFactory builds the HTTP transport used for one token request.
type TransportFactory func() (*httpreq.Request, error)

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithProviderHost overrides DefaultProviderHost.
func WithProviderHost(host string) ClientOption {
	return func(c *Client) {
		if host != "" {
			c.cfg.ProviderHost = host
		}
	}
}

// WithBaseURL points the client at a full API base, e.g. a local test server.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) { c.cfg.BaseURL = base }
}

// WithClock replaces time.Now for signing and verification.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithMaxSkew overrides DefaultMaxSkew.
func WithMaxSkew(seconds int64) ClientOption {
	return func(c *Client) { c.maxSkew = seconds }
}

// WithTransport replaces the transport factory.
func WithTransport(factory TransportFactory) ClientOption {
	return func(c *Client) { c.newTransport = factory }
}

// WithSDKConfig builds transports honouring the proxy, user agent and TLS
// fingerprint settings of cfg.
func WithSDKConfig(cfg *config.SDKConfig) ClientOption {
	return func(c *Client) {
		c.newTransport = func() (*httpreq.Request, error) {
			return httpreq.New(httpreq.WithProxy(cfg))
		}
	}
}

// WithLogger sets the entry flow logs are written to.
func WithLogger(entry *log.Entry) ClientOption {
	return func(c *Client) {
		if entry != nil {
			c.log = entry
		}
	}
}

// Client drives one authorization flow. It is not safe for concurrent use;
// build one per inbound request.
type Client struct {
	cfg          ClientConfig
	now          func() time.Time
	maxSkew      int64
	newTransport TransportFactory
	log          *log.Entry

	installRenderer Renderer
	resultRenderer  Renderer

	token *TokenResult
}

// New builds a client for account using the given OAuth credentials. The
// current time is captured as the timestamp the state token is signed with.
func New(account, clientID, secret string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		cfg: ClientConfig{
			Account:      strings.TrimSpace(account),
			ClientID:     strings.TrimSpace(clientID),
			ClientSecret: secret,
			Scope:        DefaultScope,
			ProviderHost: DefaultProviderHost,
		},
		now:     time.Now,
		maxSkew: DefaultMaxSkew,
		newTransport: func() (*httpreq.Request, error) {
			return httpreq.New()
		},
		log: log.WithField("provider", "hiboutik"),
	}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.cfg.Account == "":
		return nil, &ConfigError{Field: "account", Message: "is required"}
	case strings.ContainsAny(c.cfg.Account, "/?#@: "):
		return nil, &ConfigError{Field: "account", Message: "must be a bare account name"}
	case c.cfg.ClientID == "":
		return nil, &ConfigError{Field: "client_id", Message: "is required"}
	case c.cfg.ClientSecret == "":
		return nil, &ConfigError{Field: "client_secret", Message: "is required"}
	case c.newTransport == nil:
		return nil, &ConfigError{Field: "transport", Message: "is not available"}
	case c.now == nil:
		return nil, &ConfigError{Field: "clock", Message: "is not set"}
	}

	c.cfg.Timestamp = c.now().Unix()
	return c, nil
}

// SetScope changes the requested scope. Multiple scopes are space separated.
func (c *Client) SetScope(scope string) *Client {
	c.cfg.Scope = scope
	return c
}

// Scope returns the requested scope.
func (c *Client) Scope() string { return c.cfg.Scope }

// Config returns a copy of the client configuration.
func (c *Client) Config() ClientConfig { return c.cfg }

// AuthorizationRequest builds the authorize redirect for this client.
func (c *Client) AuthorizationRequest() AuthorizationRequest {
	return BuildAuthorizationRequest(c.cfg)
}

// SetInstallRenderer registers the renderer for install pages.
func (c *Client) SetInstallRenderer(r Renderer) *Client {
	c.installRenderer = r
	return c
}

// SetResultRenderer registers the renderer for result pages.
func (c *Client) SetResultRenderer(r Renderer) *Client {
	c.resultRenderer = r
	return c
}

// ShowToken returns the token obtained by the last successful exchange, or
// nil. Persisting it is up to the caller.
func (c *Client) ShowToken() *TokenResult {
	return c.token
}
