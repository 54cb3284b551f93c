package scan

import (
	"strings"

	"svcscan/internal/httpmsg"
)

// summaryWidth caps the summary taken from an unstructured banner.
const summaryWidth = 35

// ServiceInfo is the per-port record a probe task accumulates. It is
// mutated only by the owning task until it is published into the
// engine's service list, and is immutable afterwards.
type ServiceInfo struct {
	Addr  string
	Port  uint16
	Proto string
	State HostState

	Banner  string
	Service string
	Summary string

	// Populated only when the TLS handshake succeeded and a peer
	// certificate was visible.
	Cipher  string
	Issuer  string
	Subject string

	// Populated only when an HTTP(S) probe succeeded.
	Request  *httpmsg.Request
	Response *httpmsg.Response
}

// NewServiceInfo returns an empty record for the given endpoint.
func NewServiceInfo(ep Endpoint) *ServiceInfo {
	return &ServiceInfo{
		Addr:  ep.Addr,
		Port:  ep.Port,
		Proto: "tcp",
		State: StateUnknown,
	}
}

// ParseBanner fills service metadata from raw banner bytes. The banner
// is kept up to its last EOL; a banner with at least two '-' separators
// is split into service, protocol and summary segments, anything else
// is recorded as an unknown service with an abbreviated summary.
func (si *ServiceInfo) ParseBanner(raw string) {
	if raw == "" {
		return
	}

	si.State = StateOpen
	si.Banner = UptoLastEOL(raw)

	if strings.Count(si.Banner, "-") < 2 {
		si.Service = "unknown"
		si.Summary = Shrink(si.Banner, summaryWidth)
		return
	}

	segments := strings.SplitN(si.Banner, "-", 3)
	for i, segment := range segments {
		switch i {
		case 0: // service name
			si.Service = strings.ToLower(segment)
		case 1: // protocol version
			si.Proto = strings.ToLower(segment)
			si.Service += " (" + si.Proto + ")"
		case 2: // service summary
			si.Summary = strings.ReplaceAll(segment, "_", " ")
		}
	}
}

// Shrink abbreviates data longer than n bytes to its first n bytes
// followed by "...", so an abbreviated result is n+3 bytes long.
func Shrink(data string, n int) string {
	if n <= 0 || len(data) <= n {
		return data
	}
	return data[:n] + "..."
}

// UptoLastEOL returns data up to (excluding) its last CRLF or LF
// sequence. Data without any EOL yields the empty string.
func UptoLastEOL(data string) string {
	if data == "" {
		return data
	}
	idx := strings.LastIndex(data, "\n")
	if idx < 0 {
		return ""
	}
	if idx > 0 && data[idx-1] == '\r' {
		idx--
	}
	return data[:idx]
}
