// Package util provides utility functions for the Hiboutik OAuth client.
// It includes helper functions for proxy configuration, transport setup,
// log level management, and other common operations used across the application.
package util

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/hiboutik/oauth-client/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// ConfigureProxy routes the provided transport through the proxy named in the
// configuration. It supports SOCKS5, HTTP, and HTTPS proxies. The dialer is
// used as the forward dialer for SOCKS5 so connect timeouts still apply.
// An empty proxy URL leaves the transport untouched.
func ConfigureProxy(cfg *config.SDKConfig, transport *http.Transport, dialer *net.Dialer) error {
	if cfg == nil || transport == nil || strings.TrimSpace(cfg.ProxyURL) == "" {
		return nil
	}
	proxyURL, errParse := url.Parse(strings.TrimSpace(cfg.ProxyURL))
	if errParse != nil {
		return fmt.Errorf("parse proxy URL: %w", errParse)
	}

	switch proxyURL.Scheme {
	case "socks5", "socks5h":
		var proxyAuth *proxy.Auth
		if proxyURL.User != nil {
			username := proxyURL.User.Username()
			password, _ := proxyURL.User.Password()
			proxyAuth = &proxy.Auth{User: username, Password: password}
		}
		var forward proxy.Dialer = proxy.Direct
		if dialer != nil {
			forward = dialer
		}
		socks, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, forward)
		if errSOCKS5 != nil {
			return fmt.Errorf("create SOCKS5 dialer: %w", errSOCKS5)
		}
		transport.Proxy = nil
		if contextDialer, ok := socks.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return socks.Dial(network, addr)
			}
		}
		log.Debugf("outbound requests use SOCKS5 proxy %s", proxyURL.Host)
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
		log.Debugf("outbound requests use HTTP proxy %s", proxyURL.Host)
	default:
		return fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}
	return nil
}
