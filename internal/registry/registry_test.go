package registry

import "testing"

func TestLoad(t *testing.T) {
	reg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	rec, ok := reg.Lookup(1)
	if !ok {
		t.Fatalf("expected a record for port 1")
	}
	if rec.Service != "tcpmux" || rec.Summary != "TCP Port Service Multiplexer" {
		t.Fatalf("unexpected port 1 record: %+v", rec)
	}

	rec, ok = reg.Lookup(22)
	if !ok || rec.Service != "ssh" {
		t.Fatalf("unexpected port 22 record: %+v ok=%v", rec, ok)
	}

	rec, ok = reg.Lookup(80)
	if !ok || rec.Service != "http" || rec.Proto != "tcp" {
		t.Fatalf("unexpected port 80 record: %+v ok=%v", rec, ok)
	}
}

func TestLookup_OutOfRange(t *testing.T) {
	reg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := reg.Lookup(0); ok {
		t.Fatalf("port 0 should miss")
	}
	if _, ok := reg.Lookup(65535); ok {
		t.Fatalf("port past the blob should miss, not error")
	}
}

func TestParse_QuotedFields(t *testing.T) {
	reg, err := parse("1,tcp,tcpmux,\"TCP Port Service Multiplexer\"\n2,tcp,\"compressnet\",Management Utility\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	rec, ok := reg.Lookup(1)
	if !ok || rec.Summary != "TCP Port Service Multiplexer" {
		t.Fatalf("quotes not stripped: %+v", rec)
	}
	rec, ok = reg.Lookup(2)
	if !ok || rec.Service != "compressnet" {
		t.Fatalf("quotes not stripped: %+v", rec)
	}
}

func TestParse_EmptyBlobIsFatal(t *testing.T) {
	if _, err := parse("  \n"); err == nil {
		t.Fatalf("expected error for empty blob")
	}
}

func TestLookup_BlankLineMisses(t *testing.T) {
	reg, err := parse("1,tcp,tcpmux,mux\n\n3,tcp,compressnet,compression\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := reg.Lookup(2); ok {
		t.Fatalf("blank line should yield a miss")
	}
	if rec, ok := reg.Lookup(3); !ok || rec.Service != "compressnet" {
		t.Fatalf("line indexing broken: %+v ok=%v", rec, ok)
	}
}
