package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taskmaster/taskboard/internal/infrastructure/config"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(config.LoggerConfig{Level: "loud", Format: "json"}); err == nil {
		t.Fatal("New: got nil error for unknown level")
	}
}

func TestNewFileOutput(t *testing.T) {
	dir := t.TempDir()
	l, err := New(config.LoggerConfig{
		Level:     "info",
		Format:    "json",
		Output:    "file",
		Filename:  dir + "/app.log",
		MaxSizeMB: 1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hello")
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestLogSecurityEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := FromZap(zap.New(core))

	l.LogSecurityEvent("AUTH_FAILURE", "u1", "10.0.0.1", map[string]interface{}{"reason": "bad password"})

	entries := logs.FilterMessage("Security event").All()
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["security_event"] != "AUTH_FAILURE" {
		t.Errorf("security_event: got %v", fields["security_event"])
	}
	if fields["reason"] != "bad password" {
		t.Errorf("reason: got %v", fields["reason"])
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("level: got %v, want warn", entries[0].Level)
	}
}
