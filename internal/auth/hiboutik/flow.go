package hiboutik

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/hiboutik/oauth-client/internal/httpreq"
	log "github.com/sirupsen/logrus"
)

// Page tells which page a FlowResult is meant for.
type Page string

const (
	// PageInstall offers the authorize link or shows an upstream error.
	PageInstall Page = "install"
	// PageResult shows the outcome of the token exchange.
	PageResult Page = "result"
)

// FlowResult is what Run produced for the current callback.
type FlowResult struct {
	Page             Page         `json:"page"`
	URL              string       `json:"url,omitempty"`
	Error            string       `json:"error,omitempty"`
	ErrorDescription string       `json:"error_description,omitempty"`
	Result           *TokenResult `json:"result,omitempty"`
}

// Failed reports whether the flow ended on an error, whichever page it is for.
func (r *FlowResult) Failed() bool {
	if r == nil {
		return true
	}
	if r.Page == PageResult {
		return r.Result == nil || r.Result.IsError()
	}
	return r.Error != ""
}

// ErrorCode returns the error code carried by the result, or "".
func (r *FlowResult) ErrorCode() string {
	switch {
	case r == nil:
		return ""
	case r.Page == PageResult && r.Result != nil:
		return r.Result.Error
	default:
		return r.Error
	}
}

// HTTPStatus is the status a page for r should be served with. Install pages
// are always 200, upstream errors included.
func (r *FlowResult) HTTPStatus() int {
	if r != nil && r.Page == PageInstall {
		return http.StatusOK
	}
	return httpStatusFor(r.ErrorCode())
}

// CallbackParams are the query parameters the provider redirects back with.
type CallbackParams struct {
	Code             string `json:"code,omitempty"`
	State            string `json:"state,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// CallbackParamsFromQuery extracts callback parameters from a query string.
func CallbackParamsFromQuery(q url.Values) CallbackParams {
	return CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Timestamp:        q.Get("timestamp"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}

// HasAuthorization reports whether both code and state are present.
func (p CallbackParams) HasAuthorization() bool {
	return p.Code != "" && p.State != ""
}

// Run handles one visit of the callback page.
//
// Without code and state it produces the install page: the authorize URL, or
// the provider's error when one was sent back. With both it verifies the
// state and exchanges the code, producing the result page. The registered
// renderer for the page is called before returning. The returned FlowResult
// is never nil; the error is set only when the token endpoint could not be
// reached.
func (c *Client) Run(ctx context.Context, params CallbackParams) (*FlowResult, error) {
	entry := c.log.WithField("flow_id", uuid.NewString())

	if !params.HasAuthorization() {
		result := c.installResult(params)
		if result.Error != "" {
			entry.WithField("error", result.Error).Info("hiboutik oauth: authorization refused upstream")
		} else {
			entry.Debug("hiboutik oauth: serving install page")
		}
		c.render(entry, c.installRenderer, result)
		return result, nil
	}

	result, err := c.callbackResult(ctx, entry, params)
	c.render(entry, c.resultRenderer, result)
	return result, err
}

func (c *Client) installResult(params CallbackParams) *FlowResult {
	result := &FlowResult{Page: PageInstall}
	if params.Error != "" {
		result.Error = params.Error
		result.ErrorDescription = params.ErrorDescription
		return result
	}
	result.URL = c.AuthorizationRequest().URL
	return result
}

func (c *Client) callbackResult(ctx context.Context, entry *log.Entry, params CallbackParams) (*FlowResult, error) {
	if params.Error != "" {
		entry.WithField("error", params.Error).Info("hiboutik oauth: provider returned an error with the callback")
		return &FlowResult{Page: PageResult, Result: &TokenResult{
			Error:            params.Error,
			ErrorDescription: params.ErrorDescription,
		}}, nil
	}

	ts, ok := ParseTimestamp(params.Timestamp)
	if !ok || !VerifyState(params.State, ts, c.now().Unix(), c.cfg.ClientSecret, c.cfg.ClientID, c.maxSkew) {
		entry.Warn("hiboutik oauth: rejected callback with an invalid session")
		return &FlowResult{Page: PageResult, Result: &TokenResult{
			Error:            ErrCodeInvalidSession,
			ErrorDescription: invalidSessionDescription,
		}}, nil
	}

	token, err := c.ExchangeCode(ctx, params.Code)
	if err != nil {
		description := err.Error()
		var te *httpreq.TransportError
		if errors.As(err, &te) {
			description = te.Description
		}
		return &FlowResult{Page: PageResult, Result: &TokenResult{
			Error:            ErrCodeTemporarilyUnavailable,
			ErrorDescription: description,
		}}, err
	}
	if token.IsError() {
		entry.WithField("error", token.Error).Info("hiboutik oauth: token exchange refused")
	} else {
		entry.Info("hiboutik oauth: application installed")
	}
	return &FlowResult{Page: PageResult, Result: token}, nil
}

func (c *Client) render(entry *log.Entry, r Renderer, result *FlowResult) {
	if r == nil {
		return
	}
	if err := r.Render(result, c); err != nil {
		entry.WithError(err).Errorf("hiboutik oauth: render %s page", result.Page)
	}
}
