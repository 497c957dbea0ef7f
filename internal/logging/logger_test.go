package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewDefaultLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf})

	logger.Debug("debug suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected debug output to be suppressed, got %q", buf.String())
	}

	logger.Info("migration started")
	if out := buf.String(); !strings.Contains(out, "migration started") {
		t.Fatalf("expected info log to contain message, got %q", out)
	}
}

func TestNewVerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Verbose: true, Writer: &buf})

	logger.Debug("replacement recorded")
	if out := buf.String(); !strings.Contains(out, "replacement recorded") {
		t.Fatalf("expected debug output when verbose, got %q", out)
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger := NewSlogAdapter(base)

	logger.Debug("parsed", "query", "q1")
	logger.Warn("fallback")
	logger.With("component", "migrate").Info("done")

	out := buf.String()
	for _, want := range []string{"parsed", "query=q1", "fallback", "component=migrate", "done"} {
		if !strings.Contains(out, want) {
			t.Errorf("output = %q, want to contain %q", out, want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
	logger.With("key", "value").Info("child message")
}
