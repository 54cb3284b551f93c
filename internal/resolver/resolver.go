// Package resolver performs forward IPv4 name resolution for scan
// targets, retrying transient failures a bounded number of times.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"svcscan/internal/scan"
)

// Kind classifies a resolution failure.
type Kind int

const (
	KindHostNotFound Kind = iota
	KindTimeout
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindHostNotFound:
		return "host_not_found"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Error preserves the originating error kind across retries.
type Error struct {
	Kind Kind
	Host string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolve %s: %s: %v", e.Host, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const defaultQueryTimeout = 2 * time.Second

// Resolver resolves hostnames to IPv4 endpoints. It queries the
// nameservers from resolv.conf directly and falls back to the system
// resolver when no server configuration is available.
type Resolver struct {
	servers []string
	client  *dns.Client
}

// New builds a resolver from the host's resolv.conf. Missing or
// unreadable configuration is not fatal; the fallback path covers it.
func New() *Resolver {
	r := &Resolver{
		client: &dns.Client{Net: "udp", Timeout: defaultQueryTimeout},
	}
	if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil {
		for _, server := range conf.Servers {
			r.servers = append(r.servers, net.JoinHostPort(server, conf.Port))
		}
	}
	return r
}

// Resolve returns the IPv4 endpoints for ep. An address that is already
// a dotted-quad literal resolves to itself. Transient failures are
// retried up to retries additional attempts; the first success wins.
func (r *Resolver) Resolve(ctx context.Context, ep scan.Endpoint, retries int) ([]scan.Endpoint, error) {
	if scan.ValidIPv4Format(ep.Addr) {
		if !scan.ValidIPv4(ep.Addr) {
			return nil, &Error{
				Kind: KindHostNotFound,
				Host: ep.Addr,
				Err:  fmt.Errorf("invalid IPv4 literal"),
			}
		}
		return []scan.Endpoint{ep}, nil
	}

	var lastErr *Error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Kind: KindOther, Host: ep.Addr, Err: err}
		}

		addrs, err := r.lookup(ctx, ep.Addr)
		if err == nil {
			out := make([]scan.Endpoint, 0, len(addrs))
			for _, addr := range addrs {
				out = append(out, scan.Endpoint{Addr: addr, Port: ep.Port})
			}
			return out, nil
		}
		lastErr = err

		// Name-not-found is authoritative; retrying cannot help.
		if err.Kind == KindHostNotFound {
			break
		}
	}
	return nil, lastErr
}

// lookup performs one resolution attempt.
func (r *Resolver) lookup(ctx context.Context, host string) ([]string, *Error) {
	if len(r.servers) == 0 {
		return r.lookupSystem(ctx, host)
	}

	msg := &dns.Msg{}
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	var lastErr *Error
	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = classifyNetErr(host, err)
			continue
		}
		if resp.Rcode == dns.RcodeNameError {
			return nil, &Error{
				Kind: KindHostNotFound,
				Host: host,
				Err:  fmt.Errorf("NXDOMAIN from %s", server),
			}
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = &Error{
				Kind: KindOther,
				Host: host,
				Err:  fmt.Errorf("rcode %s from %s", dns.RcodeToString[resp.Rcode], server),
			}
			continue
		}

		var addrs []string
		for _, answer := range resp.Answer {
			if a, ok := answer.(*dns.A); ok {
				if v4 := a.A.To4(); v4 != nil {
					addrs = append(addrs, v4.String())
				}
			}
		}
		if len(addrs) == 0 {
			return nil, &Error{
				Kind: KindHostNotFound,
				Host: host,
				Err:  fmt.Errorf("no A records"),
			}
		}
		return addrs, nil
	}
	if lastErr == nil {
		lastErr = &Error{Kind: KindOther, Host: host, Err: fmt.Errorf("no nameservers")}
	}
	return nil, lastErr
}

// lookupSystem is the fallback when resolv.conf gave us nothing.
func (r *Resolver) lookupSystem(ctx context.Context, host string) ([]string, *Error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, classifyNetErr(host, err)
	}
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			addrs = append(addrs, v4.String())
		}
	}
	if len(addrs) == 0 {
		return nil, &Error{Kind: KindHostNotFound, Host: host, Err: fmt.Errorf("no IPv4 addresses")}
	}
	return addrs, nil
}

func classifyNetErr(host string, err error) *Error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return &Error{Kind: KindHostNotFound, Host: host, Err: err}
		case dnsErr.IsTimeout:
			return &Error{Kind: KindTimeout, Host: host, Err: err}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Host: host, Err: err}
	}
	return &Error{Kind: KindOther, Host: host, Err: err}
}
