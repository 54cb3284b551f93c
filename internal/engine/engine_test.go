package engine

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"svcscan/internal/client"
	"svcscan/internal/scan"
)

func testOptions(out *bytes.Buffer) Options {
	return Options{
		Timeouts: client.Timeouts{
			Connect: 500 * time.Millisecond,
			Recv:    200 * time.Millisecond,
			Send:    200 * time.Millisecond,
		},
		Out: out,
	}
}

func listenerPort(t *testing.T, ln net.Listener) uint16 {
	t.Helper()
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi: %v", err)
	}
	return uint16(port)
}

// closedPort reserves an ephemeral port and frees it again.
func closedPort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	port := listenerPort(t, ln)
	_ = ln.Close()
	return port
}

func bannerPort(t *testing.T, banner string) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte(banner))
			_ = conn.Close()
		}
	}()
	return listenerPort(t, ln)
}

func httpPort(t *testing.T, response string) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				_ = c.SetReadDeadline(time.Now().Add(time.Second))
				for {
					n, err := c.Read(buf)
					if err != nil || n == 0 || strings.Contains(string(buf[:n]), "\r\n\r\n") {
						break
					}
				}
				_, _ = c.Write([]byte(response))
			}(conn)
		}
	}()
	return listenerPort(t, ln)
}

func newTestEngine(t *testing.T, args *scan.Args, out *bytes.Buffer) *Engine {
	t.Helper()
	eng, err := New(zerolog.Nop(), args, nil, testOptions(out))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func TestNew_ValidatesArgs(t *testing.T) {
	var out bytes.Buffer

	if _, err := New(zerolog.Nop(), nil, nil, testOptions(&out)); err == nil {
		t.Fatalf("expected error for nil args")
	}
	if _, err := New(zerolog.Nop(), &scan.Args{Target: "", Ports: []uint16{80}}, nil, testOptions(&out)); err == nil {
		t.Fatalf("expected error for empty target")
	}
	if _, err := New(zerolog.Nop(), &scan.Args{Target: "127.0.0.1"}, nil, testOptions(&out)); err == nil {
		t.Fatalf("expected error for empty port list")
	}
}

func TestScan_ClosedPort(t *testing.T) {
	port := closedPort(t)
	var out bytes.Buffer

	args := &scan.Args{Target: "127.0.0.1", Ports: []uint16{port}}
	eng := newTestEngine(t, args, &out)

	services, err := eng.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(services) != 1 {
		t.Fatalf("expected 1 record, got %d", len(services))
	}

	svc := services[0]
	if svc.Port != port {
		t.Fatalf("unexpected port %d", svc.Port)
	}
	if svc.State != scan.StateClosed {
		t.Fatalf("expected closed, got %s", svc.State)
	}
	if svc.Banner != "" {
		t.Fatalf("expected empty banner, got %q", svc.Banner)
	}
	// Ephemeral ports sit past the registry blob, so the service name
	// falls back to unknown.
	if svc.Service != "unknown" {
		t.Fatalf("unexpected service %q", svc.Service)
	}
}

func TestScan_OpenPortWithBanner(t *testing.T) {
	port := bannerPort(t, "SSH-2.0-OpenSSH_9.0\r\n")
	var out bytes.Buffer

	args := &scan.Args{Target: "127.0.0.1", Ports: []uint16{port}}
	eng := newTestEngine(t, args, &out)

	services, err := eng.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	svc := services[0]
	if svc.State != scan.StateOpen {
		t.Fatalf("expected open, got %s", svc.State)
	}
	if svc.Banner != "SSH-2.0-OpenSSH_9.0" {
		t.Fatalf("unexpected banner %q", svc.Banner)
	}
	if !strings.Contains(svc.Service, "ssh") {
		t.Fatalf("expected ssh service, got %q", svc.Service)
	}
	if svc.Summary != "OpenSSH 9.0" {
		t.Fatalf("unexpected summary %q", svc.Summary)
	}
}

func TestScan_OpenHTTPPort(t *testing.T) {
	port := httpPort(t, "HTTP/1.1 200 OK\r\nServer: nginx/1.25.3\r\nContent-Length: 0\r\n\r\n")
	var out bytes.Buffer

	args := &scan.Args{Target: "127.0.0.1", Ports: []uint16{port}}
	eng := newTestEngine(t, args, &out)

	services, err := eng.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	svc := services[0]
	if svc.State != scan.StateOpen {
		t.Fatalf("expected open, got %s", svc.State)
	}
	if svc.Service != "http (11)" {
		t.Fatalf("unexpected service %q", svc.Service)
	}
	if svc.Summary != "nginx 1.25.3" {
		t.Fatalf("unexpected summary %q", svc.Summary)
	}
	if svc.Response == nil || svc.Response.StatusCode != 200 {
		t.Fatalf("expected retained 200 response, got %+v", svc.Response)
	}
	if svc.Request == nil || svc.Request.Method != "HEAD" {
		t.Fatalf("expected retained HEAD request, got %+v", svc.Request)
	}
}

func TestScan_OneRecordPerPortSortedAscending(t *testing.T) {
	open := bannerPort(t, "hello\r\n")
	closed := closedPort(t)
	var out bytes.Buffer

	ports := []uint16{open, closed}
	if ports[0] < ports[1] {
		ports[0], ports[1] = ports[1], ports[0] // dispatch order descending
	}

	args := &scan.Args{Target: "127.0.0.1", Ports: ports}
	eng := newTestEngine(t, args, &out)

	services, err := eng.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("expected 2 records, got %d", len(services))
	}
	if services[0].Port > services[1].Port {
		t.Fatalf("expected ascending port order, got %d then %d", services[0].Port, services[1].Port)
	}
}

func TestScan_ProgressReportsCompletion(t *testing.T) {
	port := closedPort(t)
	var out bytes.Buffer

	args := &scan.Args{Target: "127.0.0.1", Ports: []uint16{port}}
	eng := newTestEngine(t, args, &out)

	if got := eng.Progress(); !strings.Contains(got, "0.0% complete (1 port remaining)") {
		t.Fatalf("unexpected initial progress %q", got)
	}

	if _, err := eng.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := eng.Progress(); !strings.Contains(got, "100.0% complete (0 ports remaining)") {
		t.Fatalf("unexpected final progress %q", got)
	}
}

func TestScan_WritesStartupAndTable(t *testing.T) {
	port := closedPort(t)
	var out bytes.Buffer

	args := &scan.Args{Target: "127.0.0.1", Ports: []uint16{port}}
	eng := newTestEngine(t, args, &out)

	if _, err := eng.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	text := out.String()
	for _, want := range []string{"Beginning SvcScan", "Target: 127.0.0.1", "Scan Summary", "PORT", "SERVICE", "STATE", "INFO"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in output:\n%s", want, text)
		}
	}
}

func TestScan_UnresolvableTargetIsFatal(t *testing.T) {
	var out bytes.Buffer
	args := &scan.Args{Target: "svcscan-does-not-exist.invalid", Ports: []uint16{80}}
	eng := newTestEngine(t, args, &out)

	if _, err := eng.Scan(context.Background()); err == nil {
		t.Fatalf("expected fatal resolution error")
	}
}

func TestClassify_RegistryFallback(t *testing.T) {
	var out bytes.Buffer
	args := &scan.Args{Target: "127.0.0.1", Ports: []uint16{22}}
	eng := newTestEngine(t, args, &out)

	info := scan.NewServiceInfo(scan.Endpoint{Addr: "127.0.0.1", Port: 22})
	eng.classify(info, scan.StateOpen)

	if info.Service != "ssh" {
		t.Fatalf("expected registry service, got %q", info.Service)
	}
	if info.Summary == "" {
		t.Fatalf("expected registry summary")
	}
	if info.State != scan.StateOpen {
		t.Fatalf("expected open state, got %s", info.State)
	}
}

func TestClassify_BannerSummaryPreserved(t *testing.T) {
	var out bytes.Buffer
	args := &scan.Args{Target: "127.0.0.1", Ports: []uint16{22}}
	eng := newTestEngine(t, args, &out)

	info := scan.NewServiceInfo(scan.Endpoint{Addr: "127.0.0.1", Port: 22})
	info.ParseBanner("garbage banner\r\n")
	eng.classify(info, scan.StateOpen)

	// A banner-derived unknown service with a summary is left alone.
	if info.Service != "unknown" || info.Summary != "garbage banner" {
		t.Fatalf("expected banner identity preserved, got %q / %q", info.Service, info.Summary)
	}
}
