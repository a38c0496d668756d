package hiboutik

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
)

// DefaultMaxSkew is how old, in seconds, a state token may be.
const DefaultMaxSkew int64 = 1800

// AuthorizationRequest is the redirect sent to the provider's authorize
// endpoint together with the values used to sign it.
type AuthorizationRequest struct {
	URL       string `json:"url"`
	State     string `json:"state"`
	Timestamp int64  `json:"timestamp"`
}

// SignState computes the hex encoded HMAC-SHA256 of
// "client_id=<clientID>&timestamp=<timestamp>" keyed by secret.
func SignState(clientID string, timestamp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("client_id=" + clientID + "&timestamp=" + strconv.FormatInt(timestamp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// BuildAuthorizationRequest assembles the authorize URL for cfg. Parameters
// are emitted in a fixed order; the scope is percent-encoded with spaces as %20.
func BuildAuthorizationRequest(cfg ClientConfig) AuthorizationRequest {
	state := SignState(cfg.ClientID, cfg.Timestamp, cfg.ClientSecret)
	ts := strconv.FormatInt(cfg.Timestamp, 10)

	var b strings.Builder
	b.WriteString(cfg.AuthorizeEndpoint())
	b.WriteString("?response_type=code")
	b.WriteString("&client_id=" + url.QueryEscape(cfg.ClientID))
	b.WriteString("&state=" + state)
	b.WriteString("&scope=" + escapeScope(cfg.Scope))
	b.WriteString("&account=" + url.QueryEscape(cfg.Account))
	b.WriteString("&timestamp=" + ts)

	return AuthorizationRequest{URL: b.String(), State: state, Timestamp: cfg.Timestamp}
}

func escapeScope(scope string) string {
	// QueryEscape turns a literal '+' into %2B, so every remaining '+' is a space.
	return strings.ReplaceAll(url.QueryEscape(scope), "+", "%20")
}

// VerifyState reports whether received is the state signed for clientID at
// receivedTimestamp. Tokens older than maxSkew seconds are rejected before the
// signature is looked at; a non-positive maxSkew means DefaultMaxSkew.
func VerifyState(received string, receivedTimestamp, now int64, secret, clientID string, maxSkew int64) bool {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	if now-receivedTimestamp > maxSkew {
		return false
	}
	expected := SignState(clientID, receivedTimestamp, secret)
	return hmac.Equal([]byte(received), []byte(expected))
}

// ParseTimestamp parses the timestamp echoed back by the provider.
func ParseTimestamp(raw string) (int64, bool) {
	ts, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
