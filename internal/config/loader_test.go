package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nregistry: /tmp/catalog.yaml\nfetch:\n  max_attempts: 5\nbundle:\n  parallelism: 8\nclient:\n  webp: true\n")
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Addr != ":9999" || cfg.Registry != "/tmp/catalog.yaml" || cfg.Fetch.MaxAttempts != 5 || cfg.Bundle.Parallelism != 8 || !cfg.Client.WebP {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","registry":"/m/catalog.json","breaker":{"failure_threshold":3},"perf":{"check_interval":30},"client":{"ktx2":true,"mobile":true}}`)
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Addr != ":7070" || cfg.Registry != "/m/catalog.json" || cfg.Breaker.FailureThreshold != 3 || cfg.Perf.CheckInterval != 30 || !cfg.Client.KTX2 || !cfg.Client.Mobile {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nregistry=\"/x/catalog.toml\"\n[fetch]\nbase_delay_ms=200\n[client]\nmax_texture_size=4096\n")
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Addr != ":8081" || cfg.Registry != "/x/catalog.toml" || cfg.Fetch.BaseDelayMS != 200 || cfg.Client.MaxTextureSize != 4096 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil { t.Fatalf("expected error on empty path") }
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil { t.Fatalf("expected unsupported extension error") }
}
