package client

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"svcscan/internal/scan"
)

// TCPClient probes a plaintext TCP service.
type TCPClient struct {
	conn
}

// NewTCP builds a plaintext client with the given per-operation bounds.
func NewTCP(log zerolog.Logger, timeouts Timeouts) *TCPClient {
	return &TCPClient{conn: conn{log: log, timeouts: timeouts.withDefaults()}}
}

// Connect dials the endpoint with the bounded connect timeout. The
// outcome decides the recorded host state.
func (c *TCPClient) Connect(ctx context.Context, ep scan.Endpoint) error {
	if !ep.Valid() {
		return c.record("connect", fmt.Errorf("invalid endpoint %s", ep))
	}
	c.remote = ep

	dialer := net.Dialer{Timeout: c.timeouts.Connect}
	stream, err := dialer.DialContext(ctx, "tcp4", ep.String())
	if err != nil {
		return c.record("connect", err)
	}

	c.stream = stream
	c.connected = true
	c.lastKind = KindNone

	c.log.Debug().
		Str("addr", ep.Addr).
		Uint16("port", ep.Port).
		Msg("connection established")

	return nil
}
