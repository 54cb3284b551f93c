package scan

import (
	"strings"
	"testing"
	"time"
)

func TestEndpoint_Valid(t *testing.T) {
	cases := []struct {
		ep   Endpoint
		want bool
	}{
		{Endpoint{Addr: "127.0.0.1", Port: 80}, true},
		{Endpoint{Addr: "scanme.example", Port: 443}, true},
		{Endpoint{Addr: "127.0.0.1", Port: 0}, false},
		{Endpoint{Addr: "256.1.1.1", Port: 80}, false},
		{Endpoint{Addr: "1.2.3", Port: 80}, true}, // hostname-shaped, resolver decides
		{Endpoint{Addr: "", Port: 80}, false},
	}
	for _, c := range cases {
		if got := c.ep.Valid(); got != c.want {
			t.Fatalf("Valid(%v) = %v, want %v", c.ep, got, c.want)
		}
	}
}

func TestValidIPv4Format(t *testing.T) {
	if !ValidIPv4Format("10.0.0.1") {
		t.Fatalf("expected dotted quad to match")
	}
	if ValidIPv4Format("example.com") {
		t.Fatalf("expected hostname to not match")
	}
	if !ValidIPv4Format("999.0.0.1") {
		t.Fatalf("format check should accept out-of-range octets")
	}
	if ValidIPv4("999.0.0.1") {
		t.Fatalf("full validation should reject out-of-range octets")
	}
}

func TestUptoLastEOL(t *testing.T) {
	if got := UptoLastEOL("SSH-2.0-OpenSSH_9.0\r\n"); got != "SSH-2.0-OpenSSH_9.0" {
		t.Fatalf("unexpected CRLF trim: %q", got)
	}
	if got := UptoLastEOL("line1\nline2\n"); got != "line1\nline2" {
		t.Fatalf("unexpected LF trim: %q", got)
	}
	if got := UptoLastEOL("no eol here"); got != "" {
		t.Fatalf("expected empty result without EOL, got %q", got)
	}
}

func TestShrink(t *testing.T) {
	if got := Shrink("short", 35); got != "short" {
		t.Fatalf("short input should pass through, got %q", got)
	}
	long := strings.Repeat("x", 40)
	got := Shrink(long, 35)
	if len(got) != 38 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected abbreviation %q", got)
	}
}

func TestParseBanner_StructuredSSH(t *testing.T) {
	si := NewServiceInfo(Endpoint{Addr: "127.0.0.1", Port: 22})
	si.ParseBanner("SSH-2.0-OpenSSH_9.0\r\n")

	if si.State != StateOpen {
		t.Fatalf("expected open state, got %s", si.State)
	}
	if si.Banner != "SSH-2.0-OpenSSH_9.0" {
		t.Fatalf("unexpected banner %q", si.Banner)
	}
	if si.Service != "ssh (2.0)" {
		t.Fatalf("unexpected service %q", si.Service)
	}
	if si.Proto != "2.0" {
		t.Fatalf("unexpected proto %q", si.Proto)
	}
	if si.Summary != "OpenSSH 9.0" {
		t.Fatalf("unexpected summary %q", si.Summary)
	}
}

func TestParseBanner_Unstructured(t *testing.T) {
	si := NewServiceInfo(Endpoint{Addr: "127.0.0.1", Port: 6379})
	si.ParseBanner("ERR unknown command\r\n")

	if si.Service != "unknown" {
		t.Fatalf("unexpected service %q", si.Service)
	}
	if si.Summary != "ERR unknown command" {
		t.Fatalf("unexpected summary %q", si.Summary)
	}
}

func TestParseBanner_LongUnstructuredIsAbbreviated(t *testing.T) {
	si := NewServiceInfo(Endpoint{Addr: "127.0.0.1", Port: 9999})
	si.ParseBanner(strings.Repeat("z", 60) + "\n")

	if !strings.HasSuffix(si.Summary, "...") {
		t.Fatalf("expected abbreviated summary, got %q", si.Summary)
	}
	if len(si.Summary) != 38 {
		t.Fatalf("expected 35+3 characters, got %d", len(si.Summary))
	}
}

func TestParseBanner_EmptyIsNoop(t *testing.T) {
	si := NewServiceInfo(Endpoint{Addr: "127.0.0.1", Port: 1})
	si.ParseBanner("")

	if si.State != StateUnknown || si.Banner != "" || si.Service != "" {
		t.Fatalf("expected untouched record, got %+v", si)
	}
}

func TestTimer(t *testing.T) {
	var tm Timer
	tm.Start()
	time.Sleep(5 * time.Millisecond)
	tm.Stop()

	if tm.Elapsed() <= 0 {
		t.Fatalf("expected positive elapsed time")
	}
	if !tm.EndTime().After(tm.StartTime()) {
		t.Fatalf("expected end after start")
	}
}
