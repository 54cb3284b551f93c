package engine

import (
	"context"
	"strings"
	"time"

	"svcscan/internal/client"
	"svcscan/internal/httpmsg"
	"svcscan/internal/scan"
)

const bannerBufferSize = 1024

// newClient picks the probe variant the arguments selected.
func (e *Engine) newClient() client.Client {
	if e.args.TLS {
		return client.NewTLS(e.log, e.timeouts, e.targetName)
	}
	return client.NewTCP(e.log, e.timeouts)
}

// probePort runs the full per-port state machine: connect, banner read,
// optional HTTP probe, classification and publication. Every failure is
// local to this port.
func (e *Engine) probePort(ctx context.Context, port uint16) {
	e.updateStatus(port, scan.StatusExecuting)

	started := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.ObserveProbe(time.Since(started))
		}
	}()

	ep := scan.Endpoint{Addr: e.targetAddr, Port: port}
	info := scan.NewServiceInfo(ep)
	cl := e.newClient()

	if err := cl.Connect(ctx, ep); err != nil {
		if e.args.Verbose {
			e.log.Warn().
				Str("addr", ep.Addr).
				Uint16("port", port).
				Err(err).
				Msg("connect failed")
		}
	} else {
		e.processData(cl, info)
		cl.Disconnect()
	}

	state := cl.HostState()
	if details := cl.TLS(); details != nil {
		info.Cipher = details.Cipher
		info.Issuer = details.Issuer
		info.Subject = details.Subject
	}
	e.classify(info, state)

	if e.metrics != nil && info.State == scan.StateOpen {
		e.metrics.IncOpenPort()
	}

	e.addService(info)
	e.updateStatus(port, scan.StatusComplete)
}

// processData reads the connect banner and decides whether an HTTP
// probe should follow: always when --curl was given, otherwise only
// when the peer stayed silent.
func (e *Engine) processData(cl client.Client, info *scan.ServiceInfo) {
	buf := make([]byte, bannerBufferSize)
	n, _ := cl.Recv(buf)

	if n > 0 {
		info.ParseBanner(string(buf[:n]))
	}
	if n == 0 || e.args.Curl {
		e.probeHTTP(cl, info)
	}
}

// probeHTTP issues one HTTP(S) request and, on a valid response,
// rewrites the service identity from the response metadata. The probe
// uses HEAD by default, GET when --curl was given, and GET over TLS
// (the upstream asymmetry is preserved).
func (e *Engine) probeHTTP(cl client.Client, info *scan.ServiceInfo) {
	method := "HEAD"
	if e.args.Curl || e.args.TLS {
		method = "GET"
	}

	req := httpmsg.NewRequest(method, e.targetName, e.args.URI)
	resp, err := cl.Request(req)
	if err != nil || !resp.Valid() {
		if err != nil && e.args.Verbose {
			e.log.Warn().
				Str("addr", info.Addr).
				Uint16("port", info.Port).
				Err(err).
				Msg("HTTP probe failed")
		}
		return
	}

	info.State = scan.StateOpen
	info.Service = "http (" + resp.Version.NumString() + ")"
	info.Summary = strings.NewReplacer("_", " ", "/", " ").Replace(resp.Server())
	info.Request = req
	info.Response = resp

	if e.args.TLS {
		info.Service = strings.Replace(info.Service, "http", "https", 1)
	}
}

// classify assigns the derived host state and fills any remaining
// service identity from the port registry.
func (e *Engine) classify(info *scan.ServiceInfo, state scan.HostState) {
	if info.State != scan.StateOpen || state != scan.StateUnknown {
		info.State = state
	}

	if info.Service == "" || (info.Service == "unknown" && info.Summary == "") {
		if rec, ok := e.registry.Lookup(info.Port); ok {
			info.Proto = rec.Proto
			info.Service = rec.Service
			if info.Summary == "" {
				info.Summary = rec.Summary
			}
		} else if info.Service == "" {
			info.Service = "unknown"
		}
	}
}
