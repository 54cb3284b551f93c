package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svcscan.yaml")
	body := `
log_level: debug
threads: 8
timeout: 2s
recv_timeout: 750ms
uri: /status
metrics_addr: ":9090"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.LogLevel != "debug" || f.Threads != 8 {
		t.Fatalf("unexpected values: %+v", f)
	}
	if f.Timeout.Std() != 2*time.Second || f.RecvTimeout.Std() != 750*time.Millisecond {
		t.Fatalf("unexpected durations: %+v", f)
	}
	if f.URI != "/status" || f.MetricsAddr != ":9090" {
		t.Fatalf("unexpected strings: %+v", f)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
