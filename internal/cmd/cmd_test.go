package cmd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hiboutik/oauth-client/internal/auth/hiboutik"
	"github.com/hiboutik/oauth-client/internal/config"
	"github.com/tidwall/gjson"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Account:      "shop",
		ClientID:     "app",
		ClientSecret: "s3cret",
		Scope:        "basic_api",
		BaseURL:      baseURL,
		Port:         config.DefaultPort,
	}
}

func tokenEndpoint(t *testing.T, wantGrant, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(raw))
		if form.Get("grant_type") != wantGrant {
			t.Errorf("grant_type = %q, want %q", form.Get("grant_type"), wantGrant)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
}

func TestExportToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	token := &hiboutik.TokenResult{AccessToken: "abc", TokenType: "Bearer", ExpiresIn: 3600, Scope: "basic_api", RefreshToken: "def"}

	data, err := ExportToken(testConfig(""), token, now)
	if err != nil {
		t.Fatalf("ExportToken: %v", err)
	}
	doc := gjson.ParseBytes(data)
	checks := map[string]string{
		"type":          "hiboutik",
		"account":       "shop",
		"client_id":     "app",
		"access_token":  "abc",
		"refresh_token": "def",
		"expiry":        "2024-05-01T13:00:00Z",
		"obtained_at":   "2024-05-01T12:00:00Z",
	}
	for path, want := range checks {
		if got := doc.Get(path).String(); got != want {
			t.Fatalf("%s = %q, want %q", path, got, want)
		}
	}
	if doc.Get("client_secret").Exists() {
		t.Fatal("the client secret must not be exported")
	}
}

func TestExportToken_OmitsUnsetFields(t *testing.T) {
	data, err := ExportToken(testConfig(""), &hiboutik.TokenResult{AccessToken: "abc"}, time.Now())
	if err != nil {
		t.Fatalf("ExportToken: %v", err)
	}
	doc := gjson.ParseBytes(data)
	if doc.Get("refresh_token").Exists() || doc.Get("expiry").Exists() {
		t.Fatalf("unexpected fields in %s", data)
	}
}

func TestExportToken_RejectsErrors(t *testing.T) {
	if _, err := ExportToken(testConfig(""), nil, time.Now()); err == nil {
		t.Fatal("expected error for nil token")
	}
	if _, err := ExportToken(testConfig(""), &hiboutik.TokenResult{Error: "invalid_grant"}, time.Now()); err == nil {
		t.Fatal("expected error for an error result")
	}
}

func TestSaveToken_WritesFile(t *testing.T) {
	cfg := testConfig("")
	cfg.TokenFile = filepath.Join(t.TempDir(), "tokens", "hiboutik.json")

	if err := SaveToken(context.Background(), cfg, &hiboutik.TokenResult{AccessToken: "abc"}); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	data, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		t.Fatalf("read token file: %v", err)
	}
	if gjson.GetBytes(data, "access_token").String() != "abc" {
		t.Fatalf("unexpected token file %s", data)
	}
	info, err := os.Stat(cfg.TokenFile)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("token file mode = %o, want 600", perm)
	}
}

func pastedCallback(code string) string {
	ts := time.Now().Unix()
	q := url.Values{}
	q.Set("code", code)
	q.Set("state", hiboutik.SignState("app", ts, "s3cret"))
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	return "http://localhost:8317/oauth?" + q.Encode() + "\n"
}

func TestDoLogin_PastedCallback(t *testing.T) {
	srv := tokenEndpoint(t, "authorization_code", `{"access_token":"abc","expires_in":60,"token_type":"Bearer"}`)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.TokenFile = filepath.Join(t.TempDir(), "token.json")
	err := DoLogin(context.Background(), cfg, &LoginOptions{NoBrowser: true, Input: strings.NewReader(pastedCallback("the-code"))})
	if err != nil {
		t.Fatalf("DoLogin: %v", err)
	}
	data, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		t.Fatalf("read token file: %v", err)
	}
	if gjson.GetBytes(data, "access_token").String() != "abc" {
		t.Fatalf("unexpected token file %s", data)
	}
}

func TestDoLogin_PastedForgedState(t *testing.T) {
	srv := tokenEndpoint(t, "authorization_code", `{"access_token":"abc"}`)
	defer srv.Close()

	input := strings.NewReader("http://localhost/oauth?code=x&state=forged&timestamp=" + strconv.FormatInt(time.Now().Unix(), 10) + "\n")
	err := DoLogin(context.Background(), testConfig(srv.URL), &LoginOptions{NoBrowser: true, Input: input})
	var oauthErr *hiboutik.OAuthError
	if !errors.As(err, &oauthErr) || oauthErr.Code != hiboutik.ErrCodeInvalidSession {
		t.Fatalf("expected invalid_session, got %v", err)
	}
}

func TestDoLogin_PastedProviderError(t *testing.T) {
	input := strings.NewReader("?error=access_denied&error_description=denied\n")
	err := DoLogin(context.Background(), testConfig("https://example.invalid"), &LoginOptions{NoBrowser: true, Input: input})
	var oauthErr *hiboutik.OAuthError
	if !errors.As(err, &oauthErr) || oauthErr.Code != "access_denied" || oauthErr.Description != "denied" {
		t.Fatalf("expected access_denied, got %v", err)
	}
}

func TestDoLogin_EmptyInput(t *testing.T) {
	err := DoLogin(context.Background(), testConfig("https://example.invalid"), &LoginOptions{NoBrowser: true, Input: strings.NewReader("")})
	if err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestDoRefresh(t *testing.T) {
	srv := tokenEndpoint(t, "refresh_token", `{"access_token":"new","refresh_token":"next"}`)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.TokenFile = filepath.Join(t.TempDir(), "token.json")
	if err := DoRefresh(context.Background(), cfg, "old"); err != nil {
		t.Fatalf("DoRefresh: %v", err)
	}
	data, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		t.Fatalf("read token file: %v", err)
	}
	if gjson.GetBytes(data, "refresh_token").String() != "next" {
		t.Fatalf("unexpected token file %s", data)
	}
}

func TestDoRefresh_ProviderError(t *testing.T) {
	srv := tokenEndpoint(t, "refresh_token", `{"error":"invalid_grant","error_description":"expired"}`)
	defer srv.Close()

	err := DoRefresh(context.Background(), testConfig(srv.URL), "old")
	if !hiboutik.IsOAuthError(err) {
		t.Fatalf("expected an OAuth error, got %v", err)
	}
	if err = DoRefresh(context.Background(), testConfig(srv.URL), ""); err == nil {
		t.Fatal("expected error without a saved token to refresh")
	}
}

func TestDoRefresh_UsesSavedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(raw))
		if form.Get("refresh_token") != "saved-refresh" {
			t.Errorf("refresh_token = %q", form.Get("refresh_token"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"fresh","refresh_token":"rotated"}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.TokenFile = filepath.Join(t.TempDir(), "token.json")
	ctx := context.Background()
	if err := SaveToken(ctx, cfg, &hiboutik.TokenResult{AccessToken: "old", RefreshToken: "saved-refresh"}); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	if err := DoRefresh(ctx, cfg, ""); err != nil {
		t.Fatalf("DoRefresh: %v", err)
	}
	saved, err := LoadToken(ctx, cfg)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if gjson.GetBytes(saved, "access_token").String() != "fresh" || gjson.GetBytes(saved, "refresh_token").String() != "rotated" {
		t.Fatalf("unexpected saved token %s", saved)
	}
}
