// Package httpreq is a small blocking HTTP transport used to talk to OAuth
// token endpoints. A Request carries outbound headers and credentials across
// calls, records the status and headers of the last response, and never
// reuses connections or follows redirects.
package httpreq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hiboutik/oauth-client/internal/config"
	"github.com/hiboutik/oauth-client/internal/util"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	// DefaultUserAgent identifies the client to the provider.
	DefaultUserAgent = "HiboutikOauthClient Client v1"
	// ConnectTimeout bounds TCP connect and TLS handshake.
	ConnectTimeout = 4 * time.Second
	// TotalTimeout bounds a whole request including the body.
	TotalTimeout = 10 * time.Second
)

// ErrClosed is returned by requests issued after Close.
var ErrClosed = errors.New("httpreq: request is closed")

// Option customizes a Request at construction.
type Option func(*options)

type options struct {
	userAgent   string
	sdk         *config.SDKConfig
	fingerprint string
	client      *http.Client
	requestLog  bool
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithProxy applies the proxy and TLS fingerprint settings of cfg.
func WithProxy(cfg *config.SDKConfig) Option {
	return func(o *options) {
		o.sdk = cfg
		if cfg != nil && cfg.TLSFingerprint != "" {
			o.fingerprint = cfg.TLSFingerprint
		}
		if cfg != nil && cfg.UserAgent != "" {
			o.userAgent = cfg.UserAgent
		}
		if cfg != nil {
			o.requestLog = cfg.RequestLog
		}
	}
}

// WithTLSFingerprint selects a utls browser fingerprint (firefox, chrome, safari).
func WithTLSFingerprint(name string) Option {
	return func(o *options) { o.fingerprint = name }
}

// WithHTTPClient replaces the built-in client. The caller then owns the
// connection policy; redirects are still never followed.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.client = client }
}

// Request issues HTTP calls with a persistent set of outbound headers and
// credentials. It is not safe for concurrent use.
type Request struct {
	client    *http.Client
	userAgent string

	sendHeaders    *HeaderMap
	currentHeaders *HeaderMap

	basicAuth bool
	user      string
	password  string
	bearer    string

	sink       *os.File
	status     Status
	closed     bool
	requestLog bool
}

// New builds a Request. It fails when the proxy or fingerprint settings
// cannot be honoured.
func New(opts ...Option) (*Request, error) {
	o := options{userAgent: DefaultUserAgent}
	for _, opt := range opts {
		opt(&o)
	}

	client := o.client
	if client == nil {
		var err error
		client, err = newClient(&o)
		if err != nil {
			return nil, err
		}
	} else {
		copied := *client
		client = &copied
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Request{
		client:         client,
		userAgent:      o.userAgent,
		sendHeaders:    NewHeaderMap(),
		currentHeaders: NewHeaderMap(),
		requestLog:     o.requestLog,
	}, nil
}

func newClient(o *options) (*http.Client, error) {
	dialer := &net.Dialer{Timeout: ConnectTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: ConnectTimeout,
		DisableKeepAlives:   true,
		ForceAttemptHTTP2:   false,
		// A non-nil empty map disables the HTTP/2 upgrade.
		TLSNextProto: map[string]func(string, *tls.Conn) http.RoundTripper{},
	}
	if err := util.ConfigureProxy(o.sdk, transport, dialer); err != nil {
		return nil, fmt.Errorf("httpreq: %w", err)
	}

	helloID, ok, err := lookupFingerprint(o.fingerprint)
	if err != nil {
		return nil, err
	}
	if ok {
		transport.DialTLSContext = fingerprintDialer(helloID, transport.DialContext)
	}

	return &http.Client{Transport: transport, Timeout: TotalTimeout}, nil
}

// Get issues a GET request. A non-nil query is appended to rawURL.
func (r *Request) Get(ctx context.Context, rawURL string, query map[string][]string) ([]byte, error) {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + url.Values(query).Encode()
	}
	return r.do(ctx, http.MethodGet, rawURL, nil, "")
}

// Post issues a POST request with data serialized according to enc.
func (r *Request) Post(ctx context.Context, rawURL string, data any, enc BodyEncoding) ([]byte, error) {
	return r.send(ctx, http.MethodPost, rawURL, data, enc)
}

// Put issues a PUT request with data serialized according to enc.
func (r *Request) Put(ctx context.Context, rawURL string, data any, enc BodyEncoding) ([]byte, error) {
	return r.send(ctx, http.MethodPut, rawURL, data, enc)
}

// Delete issues a DELETE request.
func (r *Request) Delete(ctx context.Context, rawURL string) ([]byte, error) {
	return r.do(ctx, http.MethodDelete, rawURL, nil, "")
}

func (r *Request) send(ctx context.Context, method, rawURL string, data any, enc BodyEncoding) ([]byte, error) {
	contentType := contentTypeForm
	if enc == JSON {
		// Stays in the outbound set for later requests.
		r.SetHeaders("Content-Type", contentTypeJSON)
		contentType = contentTypeJSON
	}
	body, err := encodeBody(data, enc)
	if err != nil {
		return nil, err
	}
	return r.do(ctx, method, rawURL, body, contentType)
}

// SetHeaders upserts a header sent with every subsequent request.
func (r *Request) SetHeaders(name, value string) *Request {
	r.sendHeaders.Set(name, value)
	return r
}

// OutboundHeaders returns the headers sent with every request.
func (r *Request) OutboundHeaders() *HeaderMap {
	return r.sendHeaders
}

// SetUserAgent changes the User-Agent header.
func (r *Request) SetUserAgent(ua string) *Request {
	r.userAgent = ua
	return r
}

// BasicAuth enables HTTP Basic authentication on subsequent requests.
func (r *Request) BasicAuth(user, password string) *Request {
	r.basicAuth = true
	r.user = user
	r.password = password
	return r
}

// StopBasicAuth disables HTTP Basic authentication.
func (r *Request) StopBasicAuth() *Request {
	r.basicAuth = false
	r.user = ""
	r.password = ""
	return r
}

// SetOAuthToken presents token as a bearer credential through an
// oauth2.Transport. Basic auth, or an Authorization header set with
// SetHeaders, takes precedence over the token.
func (r *Request) SetOAuthToken(token string) *Request {
	r.bearer = token
	return r
}

// Header returns one captured header of the last response.
func (r *Request) Header(name string) (string, bool) {
	return r.currentHeaders.Get(name)
}

// Headers returns all captured headers of the last response.
func (r *Request) Headers() *HeaderMap {
	return r.currentHeaders
}

// Status returns the diagnostics of the last request.
func (r *Request) Status() Status {
	return r.status
}

// Code returns the HTTP status code of the last response, zero if none.
func (r *Request) Code() int {
	return r.status.HTTPCode
}

// ToFile streams subsequent response bodies into the file at path instead of
// returning them. The methods then return an empty body.
func (r *Request) ToFile(path string) (*Request, error) {
	f, err := os.Create(path)
	if err != nil {
		return r, fmt.Errorf("httpreq: open sink: %w", err)
	}
	_ = r.closeSink()
	r.sink = f
	return r, nil
}

// Reset forgets outbound headers, credentials, the file sink and the last
// response diagnostics.
func (r *Request) Reset() *Request {
	r.sendHeaders.Clear()
	r.currentHeaders.Clear()
	r.StopBasicAuth()
	r.bearer = ""
	_ = r.closeSink()
	r.status = Status{}
	return r
}

// Close releases the file sink and idle connections. It is safe to call more
// than once.
func (r *Request) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.closeSink()
	r.client.CloseIdleConnections()
	return err
}

func (r *Request) closeSink() error {
	if r.sink == nil {
		return nil
	}
	err := r.sink.Close()
	r.sink = nil
	return err
}

func (r *Request) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.currentHeaders.Clear()
	r.status = Status{Method: method, URL: rawURL}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, r.fail(err)
	}
	r.applyHeaders(req, contentType)

	start := time.Now()
	resp, err := r.clientFor().Do(req)
	r.status.TotalTime = time.Since(start)
	if err != nil {
		return nil, r.fail(err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Debugf("httpreq: close response body: %v", errClose)
		}
	}()

	r.captureResponse(resp)

	reader, err := decodeBody(resp)
	if err != nil {
		return nil, r.fail(err)
	}
	if reader != resp.Body {
		defer func() { _ = reader.Close() }()
	}

	if r.sink != nil {
		if _, err = io.Copy(r.sink, reader); err != nil {
			return nil, r.fail(err)
		}
		return []byte{}, nil
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, r.fail(err)
	}
	log.Debugf("httpreq: %s %s -> %d (%d bytes, %s)", method, redactURL(rawURL), resp.StatusCode, len(data), r.status.TotalTime)
	if r.requestLog {
		r.logExchange(len(data))
	}
	return data, nil
}

// logExchange writes one line per request with the outbound header names and
// the captured response headers. Header values that carry credentials are
// shortened.
func (r *Request) logExchange(size int) {
	inbound := make(log.Fields, r.currentHeaders.Len())
	r.currentHeaders.Each(func(name, value string) {
		inbound[name] = maskHeaderValue(name, value)
	})
	log.WithFields(log.Fields{
		"method":   r.status.Method,
		"url":      redactURL(r.status.URL),
		"status":   r.status.HTTPCode,
		"proto":    r.status.Proto,
		"bytes":    size,
		"duration": r.status.TotalTime,
		"sent":     strings.Join(r.sendHeaders.Names(), ","),
		"basic":    r.basicAuth,
		"received": inbound,
	}).Info("httpreq: exchange")
}

func maskHeaderValue(name, value string) string {
	lower := strings.ToLower(name)
	if lower == "authorization" || lower == "set-cookie" || strings.Contains(lower, "token") {
		return util.HideSecret(value)
	}
	return value
}

func (r *Request) fail(err error) *TransportError {
	te := classifyError(err)
	r.status.Err = te
	log.Debugf("httpreq: %s %s failed: %v", r.status.Method, redactURL(r.status.URL), te)
	return te
}

func (r *Request) applyHeaders(req *http.Request, contentType string) {
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	r.sendHeaders.Each(func(name, value string) {
		// net/http adds its own User-Agent unless the canonical key is set.
		if strings.EqualFold(name, "User-Agent") {
			name = "User-Agent"
		}
		// Literal key: the name goes on the wire exactly as given, replacing
		// any default spelled with different case.
		for key := range req.Header {
			if key != name && strings.EqualFold(key, name) {
				delete(req.Header, key)
			}
		}
		req.Header[name] = []string{value}
	})
	if r.basicAuth {
		req.SetBasicAuth(r.user, r.password)
	}
}

func (r *Request) explicitAuthorization() bool {
	_, ok := r.sendHeaders.Get("Authorization")
	return ok
}

// clientFor wraps the base client in an oauth2.Transport when a bearer token
// is the credential for this request.
func (r *Request) clientFor() *http.Client {
	if r.bearer == "" || r.basicAuth || r.explicitAuthorization() {
		return r.client
	}
	base := r.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: r.bearer, TokenType: "Bearer"}),
			Base:   base,
		},
		CheckRedirect: r.client.CheckRedirect,
		Timeout:       r.client.Timeout,
		Jar:           r.client.Jar,
	}
}

func (r *Request) captureResponse(resp *http.Response) {
	r.status.HTTPCode = resp.StatusCode
	r.status.Proto = resp.Proto
	r.status.ContentType = resp.Header.Get("Content-Type")
	r.status.ContentLength = resp.ContentLength
	if resp.Request != nil && resp.Request.URL != nil {
		r.status.URL = resp.Request.URL.String()
	}
	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range resp.Header[name] {
			r.currentHeaders.CaptureHeaderLine(name + ": " + value)
		}
	}
}

func redactURL(rawURL string) string {
	if idx := strings.IndexByte(rawURL, '?'); idx >= 0 {
		return rawURL[:idx+1] + util.MaskSensitiveQuery(rawURL[idx+1:])
	}
	return rawURL
}
