package resolver

import (
	"context"
	"net"
	"testing"

	"svcscan/internal/scan"
)

func TestResolve_IPv4LiteralPassesThrough(t *testing.T) {
	r := New()
	eps, err := r.Resolve(context.Background(), scan.Endpoint{Addr: "127.0.0.1", Port: 80}, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(eps) != 1 || eps[0].Addr != "127.0.0.1" || eps[0].Port != 80 {
		t.Fatalf("unexpected endpoints %v", eps)
	}
}

func TestResolve_InvalidLiteralIsHostNotFound(t *testing.T) {
	r := New()
	_, err := r.Resolve(context.Background(), scan.Endpoint{Addr: "300.1.2.3", Port: 80}, 0)
	if err == nil {
		t.Fatalf("expected error")
	}
	rerr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if rerr.Kind != KindHostNotFound {
		t.Fatalf("expected host_not_found, got %s", rerr.Kind)
	}
}

func TestResolve_CanceledContext(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, scan.Endpoint{Addr: "svc.invalid", Port: 80}, 3)
	if err == nil {
		t.Fatalf("expected error on canceled context")
	}
}

func TestClassifyNetErr(t *testing.T) {
	notFound := &net.DNSError{Err: "no such host", Name: "x", IsNotFound: true}
	if e := classifyNetErr("x", notFound); e.Kind != KindHostNotFound {
		t.Fatalf("expected host_not_found, got %s", e.Kind)
	}

	timeout := &net.DNSError{Err: "i/o timeout", Name: "x", IsTimeout: true}
	if e := classifyNetErr("x", timeout); e.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %s", e.Kind)
	}

	if e := classifyNetErr("x", net.ErrClosed); e.Kind != KindOther {
		t.Fatalf("expected other, got %s", e.Kind)
	}
}

func TestKindString(t *testing.T) {
	if KindHostNotFound.String() != "host_not_found" ||
		KindTimeout.String() != "timeout" ||
		KindOther.String() != "other" {
		t.Fatalf("unexpected kind strings")
	}
}
