package hiboutik

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hiboutik/oauth-client/internal/httpreq"
)

// Error codes produced locally, in addition to the ones relayed from the
// provider.
const (
	// ErrCodeInvalidSession is returned when the state token is expired or forged.
	ErrCodeInvalidSession = "invalid_session"
	// ErrCodeInvalidResponse is returned when the token endpoint answers with
	// something that is not a token object.
	ErrCodeInvalidResponse = "invalid_response"
	// ErrCodeTemporarilyUnavailable is returned when the token endpoint could
	// not be reached.
	ErrCodeTemporarilyUnavailable = "temporarily_unavailable"
)

// invalidSessionDescription never says which check failed.
const invalidSessionDescription = "This session is invalid"

// OAuthError represents an OAuth error returned by the provider or produced
// while handling the callback.
type OAuthError struct {
	// Code is the OAuth error code.
	Code string `json:"error"`
	// Description is a human-readable description of the error.
	Description string `json:"error_description,omitempty"`
	// StatusCode is the HTTP status code associated with the error, if any.
	StatusCode int `json:"-"`
}

// Error returns a string representation of the OAuth error.
func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("OAuth error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("OAuth error: %s", e.Code)
}

// NewOAuthError creates a new OAuth error.
func NewOAuthError(code, description string, statusCode int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		StatusCode:  statusCode,
	}
}

// IsOAuthError checks if an error is an OAuth error.
func IsOAuthError(err error) bool {
	var oauthErr *OAuthError
	return errors.As(err, &oauthErr)
}

// ConfigError reports a client that cannot be constructed.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("hiboutik: invalid configuration: %s %s", e.Field, e.Message)
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// UserFriendlyMessage returns a message suitable for showing to the person
// going through the authorization flow.
func UserFriendlyMessage(err error) string {
	var (
		oauthErr *OAuthError
		cfgErr   *ConfigError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &oauthErr):
		switch oauthErr.Code {
		case "access_denied":
			return "The application was not authorized."
		case ErrCodeInvalidSession:
			return "This session has expired. Please start the installation again."
		case ErrCodeTemporarilyUnavailable:
			return "Hiboutik could not be reached. Please try again later."
		case ErrCodeInvalidResponse:
			return "Hiboutik returned an unexpected answer. Please try again later."
		case "invalid_grant":
			return "The authorization has expired or was revoked. Please install the application again."
		case "invalid_client":
			return "The application credentials were rejected."
		default:
			if oauthErr.Description != "" {
				return fmt.Sprintf("Authorization failed: %s", oauthErr.Description)
			}
			return fmt.Sprintf("Authorization failed: %s", oauthErr.Code)
		}
	case errors.As(err, &cfgErr):
		return "The application is not configured correctly."
	case httpreq.IsTransportError(err):
		return "Hiboutik could not be reached. Please try again later."
	default:
		return "An unexpected error occurred. Please try again."
	}
}

// httpStatusFor maps a flow outcome to the status the callback page is
// served with.
func httpStatusFor(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case ErrCodeTemporarilyUnavailable, ErrCodeInvalidResponse:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
