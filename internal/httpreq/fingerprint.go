package httpreq

import (
	"context"
	"fmt"
	"net"
	"strings"

	tls "github.com/refraction-networking/utls"
	log "github.com/sirupsen/logrus"
)

// fingerprints maps configuration names to utls ClientHello presets.
var fingerprints = map[string]tls.ClientHelloID{
	"firefox": tls.HelloFirefox_Auto,
	"chrome":  tls.HelloChrome_Auto,
	"safari":  tls.HelloSafari_Auto,
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func lookupFingerprint(name string) (tls.ClientHelloID, bool, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return tls.ClientHelloID{}, false, nil
	}
	id, ok := fingerprints[name]
	if !ok {
		return tls.ClientHelloID{}, false, fmt.Errorf("httpreq: unknown TLS fingerprint %q", name)
	}
	return id, true, nil
}

// fingerprintDialer returns a DialTLSContext function that performs the TLS
// handshake with a browser ClientHello. The ALPN offer is narrowed to
// http/1.1 so the transport never has to speak HTTP/2 over the connection.
func fingerprintDialer(helloID tls.ClientHelloID, dial dialFunc) dialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		conn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		uconn := tls.UClient(conn, &tls.Config{ServerName: host, NextProtos: []string{"http/1.1"}}, helloID)
		if err = uconn.BuildHandshakeState(); err != nil {
			_ = conn.Close()
			return nil, err
		}
		for _, ext := range uconn.Extensions {
			if alpn, ok := ext.(*tls.ALPNExtension); ok {
				alpn.AlpnProtocols = []string{"http/1.1"}
			}
		}
		if err = uconn.MarshalClientHello(); err != nil {
			_ = conn.Close()
			return nil, err
		}
		if err = uconn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		log.Debugf("utls handshake with %s done (%s)", host, helloID.Str())
		return uconn, nil
	}
}
