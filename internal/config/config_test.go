package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	xerrors "QVeritas/internal/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	path := writeFile(t, "qveritas.yaml", `
engine:
  seed: 0
storage:
  driver: memory
runtime:
  data_dir: state
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.Seed == nil || *cfg.Engine.Seed != 0 {
		t.Fatalf("explicit zero seed should be kept, got %v", cfg.Engine.Seed)
	}
	if cfg.Engine.SecurityLevel != 256 {
		t.Fatalf("expected default security level 256, got %d", cfg.Engine.SecurityLevel)
	}
	if cfg.Signing.Scheme != "placeholder" {
		t.Fatalf("expected placeholder scheme, got %s", cfg.Signing.Scheme)
	}
	dir := filepath.Dir(path)
	if cfg.Runtime.DataDir != filepath.Join(dir, "state") {
		t.Fatalf("data dir should be relative to config, got %s", cfg.Runtime.DataDir)
	}
	if cfg.Audit.Path != filepath.Join(dir, "state", "qveritas_audit.json") {
		t.Fatalf("unexpected audit path %s", cfg.Audit.Path)
	}
	if cfg.Queue.Workers != 4 || cfg.Queue.MaxRetries != 3 {
		t.Fatalf("unexpected queue defaults: %+v", cfg.Queue)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "qveritas.json", `{"server":{"address":":9090"},"engine":{"seed":42,"security_level":128}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9090" || *cfg.Engine.Seed != 42 || cfg.Engine.SecurityLevel != 128 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QVERITAS_SEED", "12345")
	t.Setenv("QVERITAS_SIGNING_SCHEME", "ed25519")
	t.Setenv("QVERITAS_SERVER_ADDRESS", "127.0.0.1:7000")
	t.Setenv("QVERITAS_LOG_LEVEL", "debug")

	cfg := Default(t.TempDir())
	if cfg.Engine.Seed == nil || *cfg.Engine.Seed != 12345 {
		t.Fatalf("seed override not applied: %v", cfg.Engine.Seed)
	}
	if cfg.Signing.Scheme != "ed25519" || cfg.Server.Address != "127.0.0.1:7000" || cfg.Log.Level != "debug" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestNegativeSeedRejected(t *testing.T) {
	path := writeFile(t, "qveritas.json", `{"engine":{"seed":-1}}`)
	_, err := Load(path)
	if xerrors.CodeOf(err) != xerrors.CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUnsupportedDriverRejected(t *testing.T) {
	path := writeFile(t, "qveritas.json", `{"storage":{"driver":"sqlite"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported storage driver")
	}
}

func TestResolveSeedPolicy(t *testing.T) {
	t.Parallel()

	fixed := func() time.Time { return time.Unix(1700000000, 0) }

	seed := int64(7)
	explicit := &Config{Engine: EngineConfig{Seed: &seed, RequireSeed: true}}
	if got, err := explicit.ResolveSeed(fixed); err != nil || got != 7 {
		t.Fatalf("explicit seed: got %d, %v", got, err)
	}

	required := &Config{Engine: EngineConfig{RequireSeed: true}}
	if _, err := required.ResolveSeed(fixed); xerrors.CodeOf(err) != xerrors.CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}

	fallback := &Config{}
	got, err := fallback.ResolveSeed(fixed)
	if err != nil || got != 1700000000 {
		t.Fatalf("fallback seed: got %d, %v", got, err)
	}
}
