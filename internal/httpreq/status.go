package httpreq

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrorCode classifies a connection level failure.
type ErrorCode string

const (
	CodeTimeout  ErrorCode = "timeout"
	CodeDNS      ErrorCode = "dns"
	CodeTLS      ErrorCode = "tls"
	CodeConnect  ErrorCode = "connect"
	CodeCanceled ErrorCode = "canceled"
	CodeProtocol ErrorCode = "protocol"
)

// TransportError reports a request that never produced a usable HTTP
// response: DNS, TLS, connect, timeout or framing failures.
type TransportError struct {
	Code        ErrorCode `json:"code"`
	Description string    `json:"description"`
	Err         error     `json:"-"`
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("httpreq: %s: %s", e.Code, e.Description)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is, or wraps, a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Status describes the outcome of the last request.
//
// HTTPCode is zero when no response was received; Err then explains why.
// A non-2xx HTTPCode with a nil Err is an ordinary HTTP error response.
type Status struct {
	HTTPCode      int             `json:"http_code"`
	Proto         string          `json:"proto,omitempty"`
	Method        string          `json:"method,omitempty"`
	URL           string          `json:"url,omitempty"`
	ContentType   string          `json:"content_type,omitempty"`
	ContentLength int64           `json:"content_length"`
	TotalTime     time.Duration   `json:"total_time"`
	Err           *TransportError `json:"error,omitempty"`
}

// OK reports a completed request with a 2xx status code.
func (s Status) OK() bool {
	return s.Err == nil && s.HTTPCode >= 200 && s.HTTPCode < 300
}

// ConnectionFailed reports that no HTTP response was received at all.
func (s Status) ConnectionFailed() bool {
	return s.HTTPCode == 0
}

func classifyError(err error) *TransportError {
	te := &TransportError{Code: CodeProtocol, Description: err.Error(), Err: err}

	var (
		dnsErr      *net.DNSError
		opErr       *net.OpError
		netErr      net.Error
		recordErr   tls.RecordHeaderError
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
	)
	switch {
	case errors.Is(err, context.Canceled):
		te.Code = CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		te.Code = CodeTimeout
	case errors.As(err, &dnsErr):
		te.Code = CodeDNS
	case errors.As(err, &recordErr), errors.As(err, &certErr), errors.As(err, &unknownAuth), errors.As(err, &hostErr):
		te.Code = CodeTLS
	case errors.As(err, &netErr) && netErr.Timeout():
		te.Code = CodeTimeout
	case errors.As(err, &opErr) && opErr.Op == "dial":
		te.Code = CodeConnect
	}
	return te
}
