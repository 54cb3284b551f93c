// Package client implements the per-connection probe surface shared by
// the plaintext and TLS scanners: bounded connect, banner reads, raw
// sends and a single HTTP request/response exchange.
package client

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"svcscan/internal/httpmsg"
	"svcscan/internal/scan"
)

// Timeouts bounds every blocking socket operation.
type Timeouts struct {
	Connect time.Duration
	Recv    time.Duration
	Send    time.Duration
}

// DefaultTimeouts applies the stock per-operation bounds.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect: 3500 * time.Millisecond,
		Recv:    1000 * time.Millisecond,
		Send:    500 * time.Millisecond,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Connect <= 0 {
		t.Connect = d.Connect
	}
	if t.Recv <= 0 {
		t.Recv = d.Recv
	}
	if t.Send <= 0 {
		t.Send = d.Send
	}
	return t
}

// TLSDetails carries the handshake facts a successful TLS connection
// exposes. Peer verification is captured, never enforced.
type TLSDetails struct {
	Cipher  string
	Issuer  string
	Subject string
}

// Client is the probe surface. Both variants implement it; only the
// connect step differs.
type Client interface {
	Connect(ctx context.Context, ep scan.Endpoint) error
	Recv(p []byte) (int, error)
	Send(p []byte) (int, error)
	Request(req *httpmsg.Request) (*httpmsg.Response, error)
	Disconnect()
	Connected() bool
	HostState() scan.HostState
	TLS() *TLSDetails
}

const recvBufferSize = 1024

// conn is the connection state machine shared by both client variants.
type conn struct {
	log      zerolog.Logger
	timeouts Timeouts

	stream    net.Conn
	remote    scan.Endpoint
	connected bool
	isTLS     bool
	lastKind  Kind
}

// Connected reports whether a live stream exists. The connected flag
// itself is the historical fact that a handshake once completed; it is
// what host-state derivation keys on, so Disconnect leaves it set.
func (c *conn) Connected() bool {
	return c.connected && c.stream != nil
}

// HostState derives the remote state from the most recent error.
func (c *conn) HostState() scan.HostState {
	return deriveState(c.lastKind, c.connected)
}

func (c *conn) TLS() *TLSDetails {
	return nil
}

// record classifies err, stores it as the most recent failure and wraps
// it for the caller. A nil err clears nothing: the last recorded
// failure stays in place until the next failure or a successful
// connect resets it.
func (c *conn) record(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := classify(err, c.isTLS)
	c.lastKind = kind

	c.log.Debug().
		Str("addr", c.remote.Addr).
		Uint16("port", c.remote.Port).
		Str("kind", kind.String()).
		Err(err).
		Msg("socket operation failed")

	return &NetError{Kind: kind, Op: op, Err: err}
}

// Recv reads once with the bounded receive timeout. A zero-byte result
// without error signals EOF.
func (c *conn) Recv(p []byte) (int, error) {
	if c.stream == nil {
		return 0, c.record("recv", net.ErrClosed)
	}
	_ = c.stream.SetReadDeadline(time.Now().Add(c.timeouts.Recv))
	n, err := c.stream.Read(p)
	if err != nil {
		return n, c.record("recv", err)
	}
	return n, nil
}

// Send writes the payload with the bounded send timeout.
func (c *conn) Send(p []byte) (int, error) {
	if c.stream == nil {
		return 0, c.record("send", net.ErrClosed)
	}
	_ = c.stream.SetWriteDeadline(time.Now().Add(c.timeouts.Send))
	n, err := c.stream.Write(p)
	if err != nil {
		return n, c.record("send", err)
	}
	return n, nil
}

// Request writes a full HTTP request, then drains and parses the
// response. EOF, TLS truncation and read timeouts are recoverable once
// any bytes arrived; the parsed response is valid iff a status line was
// recognized.
func (c *conn) Request(req *httpmsg.Request) (*httpmsg.Response, error) {
	resp := httpmsg.NewResponse()

	if _, err := c.Send(req.Serialize()); err != nil {
		return resp, err
	}

	raw, err := c.drain()
	if err != nil && len(raw) == 0 {
		return resp, err
	}
	if len(raw) == 0 {
		return resp, nil
	}

	if perr := resp.Parse(raw); perr != nil {
		// Malformed response data stays local; the caller sees an
		// invalid response rather than a failure.
		c.log.Debug().
			Str("addr", c.remote.Addr).
			Uint16("port", c.remote.Port).
			Err(perr).
			Msg("unparsable HTTP response")
		return httpmsg.NewResponse(), nil
	}
	return resp, nil
}

// drain reads until EOF, error or an exhausted receive window.
func (c *conn) drain() ([]byte, error) {
	var data []byte
	buf := make([]byte, recvBufferSize)

	for {
		n, err := c.Recv(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
		}
		if err != nil {
			if isRecoverableRead(err) && len(data) > 0 {
				return data, nil
			}
			return data, err
		}
		if n == 0 {
			return data, nil
		}
	}
}

// isRecoverableRead reports whether err is an end-of-stream condition
// that should not fail a read which already produced data.
func isRecoverableRead(err error) bool {
	var ne *NetError
	if !errors.As(err, &ne) {
		return false
	}
	switch ne.Kind {
	case KindEOF, KindTLSTruncated, KindTimeout:
		return true
	}
	return false
}

// Disconnect performs a best-effort ordered shutdown and close. Safe on
// every exit path, connected or not.
func (c *conn) Disconnect() {
	if c.stream == nil {
		return
	}
	if tcp, ok := c.stream.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	_ = c.stream.Close()
	c.stream = nil
}
