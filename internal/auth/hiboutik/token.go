package hiboutik

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hiboutik/oauth-client/internal/httpreq"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// TokenResult is the answer of the token endpoint: either the token fields or
// Error and ErrorDescription.
type TokenResult struct {
	AccessToken      string `json:"access_token,omitempty"`
	ExpiresIn        int64  `json:"expires_in,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	Scope            string `json:"scope,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// IsError reports whether r is the error variant.
func (r *TokenResult) IsError() bool {
	return r != nil && r.Error != ""
}

// Err returns the error variant as an *OAuthError, nil otherwise.
func (r *TokenResult) Err() error {
	if !r.IsError() {
		return nil
	}
	return &OAuthError{Code: r.Error, Description: r.ErrorDescription, StatusCode: httpStatusFor(r.Error)}
}

// OAuth2Token converts a successful result into an oauth2.Token whose expiry
// is counted from now. The granted scope is kept as the "scope" extra.
func (r *TokenResult) OAuth2Token() *oauth2.Token {
	if r == nil || r.IsError() || r.AccessToken == "" {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return tok.WithExtra(map[string]any{"scope": r.Scope})
}

func invalidResponse(description string) *TokenResult {
	return &TokenResult{Error: ErrCodeInvalidResponse, ErrorDescription: description}
}

// parseTokenResult maps a token endpoint body to a TokenResult. An error
// field always wins; a body that is not a token object becomes an
// invalid_response error.
func parseTokenResult(body []byte, statusCode int) *TokenResult {
	if !gjson.ValidBytes(body) {
		return invalidResponse(fmt.Sprintf("token endpoint returned a non-JSON body (HTTP %d)", statusCode))
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return invalidResponse(fmt.Sprintf("token endpoint returned a non-object body (HTTP %d)", statusCode))
	}
	if errField := res.Get("error"); errField.Exists() && errField.String() != "" {
		return &TokenResult{
			Error:            errField.String(),
			ErrorDescription: res.Get("error_description").String(),
		}
	}
	accessToken := res.Get("access_token").String()
	if accessToken == "" {
		return invalidResponse(fmt.Sprintf("token endpoint response has no access_token (HTTP %d)", statusCode))
	}
	return &TokenResult{
		AccessToken:  accessToken,
		ExpiresIn:    res.Get("expires_in").Int(),
		TokenType:    res.Get("token_type").String(),
		Scope:        res.Get("scope").String(),
		RefreshToken: res.Get("refresh_token").String(),
	}
}

// ExchangeCode trades an authorization code for a token. A provider error is
// returned as the error variant with a nil error; the error return is reserved
// for requests that never got an HTTP response.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResult, error) {
	return c.requestToken(ctx, url.Values{
		"grant_type": {"authorization_code"},
		"code":       {code},
	})
}

// ExchangeRefreshToken trades a refresh token for a new token. Errors follow
// ExchangeCode.
func (c *Client) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenResult, error) {
	return c.requestToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*TokenResult, error) {
	hr, err := c.newTransport()
	if err != nil {
		return nil, &ConfigError{Field: "transport", Message: err.Error()}
	}
	defer func() {
		if errClose := hr.Close(); errClose != nil {
			log.Debugf("hiboutik token: close transport: %v", errClose)
		}
	}()

	grantType := form.Get("grant_type")
	body, err := hr.BasicAuth(c.cfg.ClientID, c.cfg.ClientSecret).
		Post(ctx, c.cfg.TokenEndpoint(), form, httpreq.FormURLEncoded)
	if err != nil {
		c.log.WithField("grant_type", grantType).Warnf("hiboutik token: request failed: %v", err)
		return nil, fmt.Errorf("hiboutik token: request failed: %w", err)
	}

	result := parseTokenResult(body, hr.Code())
	if result.IsError() {
		c.log.WithFields(log.Fields{
			"grant_type": grantType,
			"status":     hr.Code(),
			"error":      result.Error,
		}).Debugf("hiboutik token: endpoint returned an error: %s", result.ErrorDescription)
		return result, nil
	}

	c.token = result
	c.log.WithFields(log.Fields{
		"grant_type": grantType,
		"scope":      result.Scope,
		"expires_in": result.ExpiresIn,
	}).Info("hiboutik token obtained")
	return result, nil
}
