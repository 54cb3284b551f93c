package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"svcscan/internal/scan"
)

// TLSClient probes a TLS-wrapped TCP service. It differs from the
// plaintext client only in the connect step, which layers a TLS 1.2+
// handshake on top of the socket and captures (without enforcing) the
// peer certificate identity.
type TLSClient struct {
	conn

	serverName string
	details    *TLSDetails
}

// NewTLS builds a TLS client. serverName feeds SNI; an IPv4 literal
// disables it.
func NewTLS(log zerolog.Logger, timeouts Timeouts, serverName string) *TLSClient {
	c := &TLSClient{
		conn:       conn{log: log, timeouts: timeouts.withDefaults()},
		serverName: serverName,
	}
	c.conn.isTLS = true
	return c
}

// TLS reports the captured handshake details, or nil before a
// successful handshake.
func (c *TLSClient) TLS() *TLSDetails {
	return c.details
}

// Connect dials the endpoint and negotiates TLS within the connect
// timeout budget.
func (c *TLSClient) Connect(ctx context.Context, ep scan.Endpoint) error {
	if !ep.Valid() {
		return c.record("connect", fmt.Errorf("invalid endpoint %s", ep))
	}
	c.remote = ep

	dialer := net.Dialer{Timeout: c.timeouts.Connect}
	raw, err := dialer.DialContext(ctx, "tcp4", ep.String())
	if err != nil {
		return c.record("connect", err)
	}

	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		// Identity is captured for the report, not verified.
		InsecureSkipVerify: true,
	}
	if c.serverName != "" && !scan.ValidIPv4Format(c.serverName) {
		cfg.ServerName = c.serverName
	}

	stream := tls.Client(raw, cfg)
	_ = stream.SetDeadline(time.Now().Add(c.timeouts.Connect))
	if err := stream.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return c.record("handshake", err)
	}
	_ = stream.SetDeadline(time.Time{})

	state := stream.ConnectionState()
	c.details = &TLSDetails{Cipher: tls.CipherSuiteName(state.CipherSuite)}
	if len(state.PeerCertificates) > 0 {
		cert := state.PeerCertificates[0]
		c.details.Issuer = cert.Issuer.String()
		c.details.Subject = cert.Subject.String()
	}

	c.stream = stream
	c.connected = true
	c.lastKind = KindNone

	c.log.Debug().
		Str("addr", ep.Addr).
		Uint16("port", ep.Port).
		Str("cipher", c.details.Cipher).
		Msg("TLS connection established")

	return nil
}
