package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildWritesAuditEntriesToRotatingFile(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit", "qveritas-audit.log")

	_, audit, closers, err := Build(Config{
		Level:       "debug",
		OutputPaths: []string{filepath.Join(dir, "app.log")},
		Audit:       AuditConfig{Enabled: true, Path: auditPath},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	audit.Info("proof issued", slog.String("proof_id", "0123456789abcdef"))
	closeAll(closers)

	data, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("decode audit entry: %v", err)
	}
	if entry["proof_id"] != "0123456789abcdef" {
		t.Fatalf("unexpected audit entry: %v", entry)
	}
}

func TestBuildRejectsAuditWithoutPath(t *testing.T) {
	if _, _, _, err := Build(Config{Audit: AuditConfig{Enabled: true}}); err == nil {
		t.Fatal("expected error for audit logger without path")
	}
}

func TestTextFormatAndLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	app, _, closers, err := Build(Config{Level: "warn", Format: "text", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	app.Info("hidden")
	app.Warn("visible", slog.Int("seed", 42))
	closeAll(closers)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "msg=visible") || !strings.Contains(out, "seed=42") {
		t.Fatalf("expected text formatted warn line, got %s", out)
	}
}
