package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewProvidersWithoutEndpoint(t *testing.T) {
	p, err := NewProviders(context.Background(), "  ", "sessiongate", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if p.Exporting {
		t.Fatal("expected a non-exporting provider set")
	}
	if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
		t.Fatal("expected every provider to be set")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestGRPCTarget(t *testing.T) {
	tests := []struct {
		in        string
		target    string
		plaintext bool
	}{
		{"localhost:4317", "localhost:4317", true},
		{"http://collector:4317/v1/traces", "collector:4317", true},
		{"https://collector:4317", "collector:4317", false},
	}
	for _, tt := range tests {
		target, plaintext, err := grpcTarget(tt.in)
		if err != nil {
			t.Fatalf("grpcTarget(%q): %v", tt.in, err)
		}
		if target != tt.target || plaintext != tt.plaintext {
			t.Fatalf("grpcTarget(%q) = %q,%v want %q,%v", tt.in, target, plaintext, tt.target, tt.plaintext)
		}
	}
	if _, _, err := grpcTarget("http://"); err == nil {
		t.Fatal("expected error for missing host")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo, "json").Info("hello", "k", "v")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json handler output: %v", err)
	}
	if rec["msg"] != "hello" || rec["k"] != "v" {
		t.Fatalf("unexpected record: %v", rec)
	}

	buf.Reset()
	logger := NewLogger(&buf, slog.LevelWarn, "TEXT")
	logger.Info("dropped")
	logger.Warn("kept")
	if out := buf.String(); strings.Contains(out, "dropped") || !strings.Contains(out, "msg=kept") {
		t.Fatalf("unexpected text output: %q", out)
	}
}
