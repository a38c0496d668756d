package misc

import (
	"fmt"
	"net/url"
	"strings"
)

// OAuthCallback captures the parameters of a pasted OAuth callback URL.
type OAuthCallback struct {
	Code             string
	State            string
	Timestamp        string
	Error            string
	ErrorDescription string
}

// Query returns the callback as query values, keyed the way the provider
// sends them.
func (c *OAuthCallback) Query() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("code", c.Code)
	set("state", c.State)
	set("timestamp", c.Timestamp)
	set("error", c.Error)
	set("error_description", c.ErrorDescription)
	return q
}

// ParseOAuthCallback extracts OAuth parameters from a callback URL pasted by
// the user. Bare query strings and host/path forms without a scheme are
// accepted. It returns nil when the input is empty.
func ParseOAuthCallback(input string) (*OAuthCallback, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		switch {
		case strings.HasPrefix(candidate, "?"):
			candidate = "http://localhost" + candidate
		case strings.ContainsAny(candidate, "/?#") || strings.Contains(candidate, ":"):
			candidate = "http://" + candidate
		case strings.Contains(candidate, "="):
			candidate = "http://localhost/?" + candidate
		default:
			return nil, fmt.Errorf("invalid callback URL")
		}
	}

	parsedURL, err := url.Parse(candidate)
	if err != nil {
		return nil, err
	}

	query := parsedURL.Query()
	var fragment url.Values
	if parsedURL.Fragment != "" {
		if fragQuery, errFrag := url.ParseQuery(parsedURL.Fragment); errFrag == nil {
			fragment = fragQuery
		}
	}
	get := func(key string) string {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			return v
		}
		return strings.TrimSpace(fragment.Get(key))
	}

	cb := &OAuthCallback{
		Code:             get("code"),
		State:            get("state"),
		Timestamp:        get("timestamp"),
		Error:            get("error"),
		ErrorDescription: get("error_description"),
	}
	if cb.Error == "" && cb.ErrorDescription != "" {
		cb.Error = cb.ErrorDescription
		cb.ErrorDescription = ""
	}
	if cb.Code == "" && cb.Error == "" {
		return nil, fmt.Errorf("callback URL missing code")
	}
	return cb, nil
}
