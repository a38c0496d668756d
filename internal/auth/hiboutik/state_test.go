package hiboutik

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
)

func TestSignState_VerifiesAtSameInstant(t *testing.T) {
	cases := []struct {
		clientID string
		secret   string
		ts       int64
	}{
		{"hiboutik_client", "my_password", 1700000000},
		{"a", "b", 0},
		{"client with spaces", "sécret", 1},
		{"", "", 42},
	}
	for _, tc := range cases {
		state := SignState(tc.clientID, tc.ts, tc.secret)
		if len(state) != 64 {
			t.Fatalf("expected 64 hex chars, got %d", len(state))
		}
		if !VerifyState(state, tc.ts, tc.ts, tc.secret, tc.clientID, DefaultMaxSkew) {
			t.Fatalf("state for %q should verify", tc.clientID)
		}
	}
}

func TestSignState_KnownVector(t *testing.T) {
	want := "5223059aa8e14b0d761e509b07e506998687c80d7144596a1560afb6a7d01f6d"
	if got := SignState("hiboutik_client", 1700000000, "my_password"); got != want {
		t.Fatalf("SignState = %s, want %s", got, want)
	}

	got := SignState("id", 1, "key")
	if got == SignState("id", 2, "key") || got == SignState("id2", 1, "key") || got == SignState("id", 1, "key2") {
		t.Fatal("signature must depend on every input")
	}
}

func TestVerifyState_ExpiryCheckedFirst(t *testing.T) {
	const ts int64 = 1700000000
	state := SignState("client", ts, "secret")

	if !VerifyState(state, ts, ts+DefaultMaxSkew, "secret", "client", DefaultMaxSkew) {
		t.Fatal("state at the edge of the window should verify")
	}
	if VerifyState(state, ts, ts+DefaultMaxSkew+1, "secret", "client", DefaultMaxSkew) {
		t.Fatal("expired state must be rejected even with a valid signature")
	}
	if VerifyState(state, ts, ts+100, "secret", "client", 50) {
		t.Fatal("custom skew should be honoured")
	}
	if !VerifyState(state, ts, ts+100, "secret", "client", 0) {
		t.Fatal("non-positive skew should fall back to the default")
	}
}

func TestVerifyState_RejectsForgeries(t *testing.T) {
	const ts int64 = 1700000000
	state := SignState("client", ts, "secret")

	forged := []string{
		"",
		state[:63],
		state + "0",
		strings.ToUpper(state),
		"0" + state[1:],
		state[:63] + "x",
		SignState("client", ts, "other-secret"),
		SignState("other-client", ts, "secret"),
	}
	for _, f := range forged {
		if VerifyState(f, ts, ts, "secret", "client", DefaultMaxSkew) {
			t.Fatalf("forged state %q should be rejected", f)
		}
	}
	if VerifyState(state, ts+1, ts+1, "secret", "client", DefaultMaxSkew) {
		t.Fatal("state must be bound to its timestamp")
	}
}

func TestBuildAuthorizationRequest(t *testing.T) {
	cfg := ClientConfig{
		Account:      "my_account",
		ClientID:     "hiboutik_client",
		ClientSecret: "my_password",
		Scope:        "read_products write_products",
		ProviderHost: DefaultProviderHost,
		Timestamp:    1700000000,
	}
	req := BuildAuthorizationRequest(cfg)

	wantPrefix := "https://my_account.hiboutik.com/oauth_api/authorize/?response_type=code&client_id=hiboutik_client&state="
	if !strings.HasPrefix(req.URL, wantPrefix) {
		t.Fatalf("unexpected URL %s", req.URL)
	}
	if !strings.Contains(req.URL, "&scope=read_products%20write_products&account=my_account&timestamp=1700000000") {
		t.Fatalf("unexpected parameter tail in %s", req.URL)
	}

	parsed, err := url.Parse(req.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := parsed.Query()
	ts, err := strconv.ParseInt(q.Get("timestamp"), 10, 64)
	if err != nil {
		t.Fatalf("parse timestamp: %v", err)
	}
	if q.Get("state") != SignState(cfg.ClientID, ts, cfg.ClientSecret) {
		t.Fatal("state parameter must be the signature of the URL timestamp")
	}
	if req.State != q.Get("state") || req.Timestamp != ts {
		t.Fatalf("returned state/timestamp disagree with the URL: %+v", req)
	}
	if q.Get("scope") != cfg.Scope {
		t.Fatalf("scope round trip = %q", q.Get("scope"))
	}
}

func TestBuildAuthorizationRequest_EscapesScope(t *testing.T) {
	cfg := ClientConfig{Account: "a", ClientID: "c", ClientSecret: "s", Scope: "x&y=z+w"}
	parsed, err := url.Parse(BuildAuthorizationRequest(cfg).URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if got := parsed.Query().Get("scope"); got != "x&y=z+w" {
		t.Fatalf("scope = %q", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	if ts, ok := ParseTimestamp(" 1700000000 "); !ok || ts != 1700000000 {
		t.Fatalf("ParseTimestamp = %d %v", ts, ok)
	}
	for _, raw := range []string{"", "abc", "12.5", "1e9"} {
		if _, ok := ParseTimestamp(raw); ok {
			t.Fatalf("%q should not parse", raw)
		}
	}
}
