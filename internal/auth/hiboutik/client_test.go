package hiboutik

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hiboutik/oauth-client/internal/httpreq"
)

const (
	testAccount  = "my_account"
	testClientID = "hiboutik_client"
	testSecret   = "my_password"
	testNow      = int64(1700000000)
)

func fixedClock() time.Time { return time.Unix(testNow, 0) }

// tokenServer is a fake token endpoint that counts hits and checks the
// request shape before answering with body.
func tokenServer(t *testing.T, hits *int32, wantGrant string, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path != "/token.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != testClientID || pass != testSecret {
			t.Errorf("unexpected basic auth %q %q %v", user, pass, ok)
		}
		raw, _ := io.ReadAll(r.Body)
		form, err := url.ParseQuery(string(raw))
		if err != nil {
			t.Errorf("parse form: %v", err)
		}
		if form.Get("grant_type") != wantGrant {
			t.Errorf("grant_type = %q, want %q", form.Get("grant_type"), wantGrant)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
}

func newTestClient(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()
	opts = append([]ClientOption{WithClock(fixedClock)}, opts...)
	c, err := New(testAccount, testClientID, testSecret, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// noNetwork fails the test if a transport is ever requested.
func noNetwork(t *testing.T) ClientOption {
	return WithTransport(func() (*httpreq.Request, error) {
		t.Fatal("no token request expected")
		return nil, errors.New("unreachable")
	})
}

func validParams(code string) CallbackParams {
	return CallbackParams{
		Code:      code,
		State:     SignState(testClientID, testNow, testSecret),
		Timestamp: strconv.FormatInt(testNow, 10),
	}
}

func TestNew_Defaults(t *testing.T) {
	c := newTestClient(t)
	cfg := c.Config()
	if cfg.Scope != "basic_api" || c.Scope() != "basic_api" {
		t.Fatalf("default scope = %q", cfg.Scope)
	}
	if cfg.Timestamp != testNow {
		t.Fatalf("timestamp = %d", cfg.Timestamp)
	}
	if cfg.TokenEndpoint() != "https://my_account.hiboutik.com/oauth_api/token.php" {
		t.Fatalf("token endpoint = %s", cfg.TokenEndpoint())
	}
	if c.ShowToken() != nil {
		t.Fatal("no token before an exchange")
	}
	if c.SetScope("read_products write_products").Scope() != "read_products write_products" {
		t.Fatal("SetScope should change the scope")
	}
}

func TestNew_ConfigErrors(t *testing.T) {
	cases := map[string]struct {
		account, id, secret string
		opts                []ClientOption
	}{
		"missing account": {"", testClientID, testSecret, nil},
		"bad account":     {"evil.com/x", testClientID, testSecret, nil},
		"missing id":      {testAccount, "", testSecret, nil},
		"missing secret":  {testAccount, testClientID, "", nil},
		"no transport":    {testAccount, testClientID, testSecret, []ClientOption{WithTransport(nil)}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(tc.account, tc.id, tc.secret, tc.opts...)
			if !IsConfigError(err) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestRun_InstallPage(t *testing.T) {
	var rendered *FlowResult
	c := newTestClient(t, noNetwork(t))
	c.SetInstallRenderer(RendererFunc(func(result *FlowResult, client *Client) error {
		rendered = result
		if client != c {
			t.Fatal("renderer should receive the client")
		}
		return nil
	}))
	c.SetResultRenderer(RendererFunc(func(*FlowResult, *Client) error {
		t.Fatal("result renderer must not be called")
		return nil
	}))

	result, err := c.Run(context.Background(), CallbackParams{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Page != PageInstall || result.URL == "" || result.Error != "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.URL != c.AuthorizationRequest().URL {
		t.Fatalf("install URL should be the authorize request")
	}
	if rendered != result {
		t.Fatal("install renderer should get the same result")
	}
}

func TestRun_UpstreamErrorWithoutCode(t *testing.T) {
	c := newTestClient(t, noNetwork(t))
	result, err := c.Run(context.Background(), CallbackParams{
		Error:            "access_denied",
		ErrorDescription: "The user denied access",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Page != PageInstall || result.Error != "access_denied" || result.ErrorDescription != "The user denied access" || result.URL != "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.HTTPStatus() != http.StatusOK {
		t.Fatalf("install pages are served with 200, got %d", result.HTTPStatus())
	}
}

func TestRun_CodeWithoutStateIsInstall(t *testing.T) {
	c := newTestClient(t, noNetwork(t))
	result, _ := c.Run(context.Background(), CallbackParams{Code: "abc"})
	if result.Page != PageInstall || result.URL == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRun_ValidCallbackExchangesCode(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits, "authorization_code", http.StatusOK,
		`{"access_token":"abc","expires_in":3600,"token_type":"Bearer","scope":"basic_api","refresh_token":"def"}`)
	defer srv.Close()

	var rendered *FlowResult
	c := newTestClient(t, WithBaseURL(srv.URL))
	c.SetResultRenderer(RendererFunc(func(result *FlowResult, _ *Client) error {
		rendered = result
		return nil
	}))

	result, err := c.Run(context.Background(), validParams("the-code"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected one token request, got %d", hits)
	}
	if result.Page != PageResult || result.Result == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	want := TokenResult{AccessToken: "abc", ExpiresIn: 3600, TokenType: "Bearer", Scope: "basic_api", RefreshToken: "def"}
	if *result.Result != want {
		t.Fatalf("token = %+v, want %+v", *result.Result, want)
	}
	if c.ShowToken() == nil || *c.ShowToken() != want {
		t.Fatalf("ShowToken = %+v", c.ShowToken())
	}
	if rendered != result || result.Failed() || result.HTTPStatus() != http.StatusOK {
		t.Fatalf("unexpected rendered/status: %+v", rendered)
	}
}

func TestRun_InvalidStateMakesNoRequest(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits, "authorization_code", http.StatusOK, `{"access_token":"abc"}`)
	defer srv.Close()

	forged := validParams("the-code")
	forged.State = SignState(testClientID, testNow, "guessed")
	expired := validParams("the-code")
	expired.Timestamp = strconv.FormatInt(testNow-DefaultMaxSkew-1, 10)
	expired.State = SignState(testClientID, testNow-DefaultMaxSkew-1, testSecret)
	garbled := validParams("the-code")
	garbled.Timestamp = "yesterday"

	for name, params := range map[string]CallbackParams{"forged": forged, "expired": expired, "garbled": garbled} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, WithBaseURL(srv.URL))
			result, err := c.Run(context.Background(), params)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if result.Page != PageResult || result.Result == nil ||
				result.Result.Error != "invalid_session" || result.Result.ErrorDescription != "This session is invalid" {
				t.Fatalf("unexpected result: %+v", result.Result)
			}
			if result.HTTPStatus() != http.StatusBadRequest {
				t.Fatalf("status = %d", result.HTTPStatus())
			}
			if c.ShowToken() != nil {
				t.Fatal("no token expected")
			}
		})
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("token endpoint must not be called, got %d hits", hits)
	}
}

func TestRun_ProviderErrorWithCode(t *testing.T) {
	c := newTestClient(t, noNetwork(t))
	params := validParams("the-code")
	params.Error = "access_denied"
	params.ErrorDescription = "denied"
	result, err := c.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Page != PageResult || result.Result.Error != "access_denied" || result.Result.ErrorDescription != "denied" {
		t.Fatalf("unexpected result: %+v", result.Result)
	}
}

func TestRun_TokenEndpointError(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits, "authorization_code", http.StatusBadRequest,
		`{"error":"invalid_grant","error_description":"The authorization code has expired"}`)
	defer srv.Close()

	c := newTestClient(t, WithBaseURL(srv.URL))
	result, err := c.Run(context.Background(), validParams("old-code"))
	if err != nil {
		t.Fatalf("an error body is not a Go error: %v", err)
	}
	if result.Result.Error != "invalid_grant" || result.Result.ErrorDescription != "The authorization code has expired" {
		t.Fatalf("unexpected result: %+v", result.Result)
	}
	if c.ShowToken() != nil {
		t.Fatal("failed exchange must not store a token")
	}
	if !IsOAuthError(result.Result.Err()) {
		t.Fatalf("Err() should be an OAuthError, got %v", result.Result.Err())
	}
}

func TestRun_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	var rendered bool
	c := newTestClient(t, WithBaseURL(base))
	c.SetResultRenderer(RendererFunc(func(*FlowResult, *Client) error {
		rendered = true
		return nil
	}))
	result, err := c.Run(context.Background(), validParams("the-code"))
	if err == nil || !httpreq.IsTransportError(err) {
		t.Fatalf("expected a transport error, got %v", err)
	}
	if result == nil || result.Page != PageResult || result.Result.Error != ErrCodeTemporarilyUnavailable {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.HTTPStatus() != http.StatusBadGateway || !rendered {
		t.Fatalf("status = %d rendered = %v", result.HTTPStatus(), rendered)
	}
}

func TestExchangeRefreshToken(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits, "refresh_token", http.StatusOK, `{"access_token":"new","expires_in":"16000000","token_type":"Bearer","refresh_token":"r2"}`)
	defer srv.Close()

	c := newTestClient(t, WithBaseURL(srv.URL))
	result, err := c.ExchangeRefreshToken(context.Background(), "r1")
	if err != nil {
		t.Fatalf("ExchangeRefreshToken: %v", err)
	}
	if result.AccessToken != "new" || result.ExpiresIn != 16000000 || result.RefreshToken != "r2" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if c.ShowToken() != result {
		t.Fatal("refresh result should be retrievable")
	}
}

func TestExchangeRefreshToken_ErrorBody(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits, "refresh_token", http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid refresh token"}`)
	defer srv.Close()

	c := newTestClient(t, WithBaseURL(srv.URL))
	result, err := c.ExchangeRefreshToken(context.Background(), "bad")
	if err != nil {
		t.Fatalf("ExchangeRefreshToken: %v", err)
	}
	if !result.IsError() || result.Error != "invalid_grant" || result.ErrorDescription != "Invalid refresh token" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExchangeCode_InvalidResponse(t *testing.T) {
	for name, body := range map[string]string{
		"html":       "<html>maintenance</html>",
		"array":      `["abc"]`,
		"no-token":   `{"token_type":"Bearer"}`,
		"empty-body": ``,
	} {
		t.Run(name, func(t *testing.T) {
			var hits int32
			srv := tokenServer(t, &hits, "authorization_code", http.StatusOK, body)
			defer srv.Close()

			c := newTestClient(t, WithBaseURL(srv.URL))
			result, err := c.ExchangeCode(context.Background(), "code")
			if err != nil {
				t.Fatalf("ExchangeCode: %v", err)
			}
			if result.Error != ErrCodeInvalidResponse {
				t.Fatalf("expected invalid_response, got %+v", result)
			}
		})
	}
}

func TestTokenResult_OAuth2Token(t *testing.T) {
	r := &TokenResult{AccessToken: "abc", ExpiresIn: 3600, TokenType: "Bearer", Scope: "basic_api", RefreshToken: "def"}
	tok := r.OAuth2Token()
	if tok == nil || tok.AccessToken != "abc" || tok.RefreshToken != "def" || tok.Type() != "Bearer" {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if tok.Extra("scope") != "basic_api" {
		t.Fatalf("scope extra = %v", tok.Extra("scope"))
	}
	if until := time.Until(tok.Expiry); until < 59*time.Minute || until > time.Hour {
		t.Fatalf("unexpected expiry in %s", until)
	}
	if (&TokenResult{Error: "invalid_grant"}).OAuth2Token() != nil {
		t.Fatal("error variant has no oauth2 token")
	}
}

func TestUserFriendlyMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewOAuthError("access_denied", "", 0), "The application was not authorized."},
		{NewOAuthError(ErrCodeInvalidSession, invalidSessionDescription, 0), "This session has expired. Please start the installation again."},
		{NewOAuthError("weird", "something odd", 0), "Authorization failed: something odd"},
		{&ConfigError{Field: "account", Message: "is required"}, "The application is not configured correctly."},
		{&httpreq.TransportError{Code: httpreq.CodeTimeout}, "Hiboutik could not be reached. Please try again later."},
		{errors.New("boom"), "An unexpected error occurred. Please try again."},
	}
	for _, tc := range cases {
		if got := UserFriendlyMessage(tc.err); got != tc.want {
			t.Fatalf("UserFriendlyMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
