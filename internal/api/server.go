// Package api exposes the OAuth callback page over HTTP. The /oauth route
// serves the install page on a plain visit and completes the authorization
// when the provider redirects back with a code.
package api

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hiboutik/oauth-client/internal/auth/hiboutik"
	"github.com/hiboutik/oauth-client/internal/config"
	"github.com/hiboutik/oauth-client/internal/logging"
	log "github.com/sirupsen/logrus"
)

// CallbackPath is the route the provider redirects back to.
const CallbackPath = "/oauth"

// TokenHook receives every token obtained through the callback page.
type TokenHook func(ctx context.Context, token *hiboutik.TokenResult)

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithTokenHook registers a hook called after a successful code exchange.
func WithTokenHook(hook TokenHook) ServerOption {
	return func(s *Server) { s.onToken = hook }
}

// WithClientOptions appends options to every hiboutik.Client the server
// builds. Tests use it to pin the clock.
func WithClientOptions(opts ...hiboutik.ClientOption) ServerOption {
	return func(s *Server) { s.clientOpts = append(s.clientOpts, opts...) }
}

// serverState is swapped as a whole on configuration reload.
type serverState struct {
	cfg     *config.Config
	install *template.Template
	result  *template.Template
}

// Server is the callback HTTP server.
type Server struct {
	engine     *gin.Engine
	server     *http.Server
	state      atomic.Pointer[serverState]
	onToken    TokenHook
	clientOpts []hiboutik.ClientOption
}

// NewServer builds the server for cfg. Templates named in cfg are parsed up
// front so a bad path fails here rather than on the first visit.
func NewServer(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("api: config is nil")
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{engine: gin.New()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.UpdateConfig(cfg); err != nil {
		return nil, err
	}

	s.engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())
	s.engine.GET(CallbackPath, s.handleOAuth)
	s.engine.GET("/healthz", s.handleHealth)

	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// UpdateConfig validates cfg, loads its templates and makes it current.
// On error the previous configuration stays in place.
func (s *Server) UpdateConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	install, err := hiboutik.LoadTemplate(hiboutik.PageInstall, cfg.Templates.Install)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	result, err := hiboutik.LoadTemplate(hiboutik.PageResult, cfg.Templates.Result)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if prev := s.state.Load(); prev != nil && prev.cfg.Addr() != cfg.Addr() {
		log.Warnf("listen address changed to %s; restart to apply", cfg.Addr())
	}
	s.state.Store(&serverState{cfg: cfg, install: install, result: result})
	return nil
}

// Config returns the configuration currently served.
func (s *Server) Config() *config.Config {
	return s.state.Load().cfg
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// CallbackURL is the local address of the callback page.
func (s *Server) CallbackURL() string {
	cfg := s.Config()
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port)) + CallbackPath
}

// NewClient builds a hiboutik client from the current configuration.
func (s *Server) NewClient(entry *log.Entry) (*hiboutik.Client, error) {
	cfg := s.Config()
	opts := []hiboutik.ClientOption{
		hiboutik.WithProviderHost(cfg.ProviderHost),
		hiboutik.WithBaseURL(cfg.BaseURL),
		hiboutik.WithSDKConfig(&cfg.SDKConfig),
		hiboutik.WithLogger(entry),
	}
	client, err := hiboutik.New(cfg.Account, cfg.ClientID, cfg.ClientSecret, append(opts, s.clientOpts...)...)
	if err != nil {
		return nil, err
	}
	client.SetScope(cfg.Scope)
	return client, nil
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	log.Infof("callback server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}
