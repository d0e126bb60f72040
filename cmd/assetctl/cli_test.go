package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidate_AcceptsGoodCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	body := `{
  "assets": [
    {
      "id": "hero-model",
      "kind": "model",
      "baseline": {"codec": "glb", "url": "https://cdn.example.com/hero.glb", "size_bytes": 1000},
      "priority": "high"
    }
  ],
  "bundles": [{"id": "gallery", "priority": "high", "assets": ["hero-model"]}]
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := runCommand(t, "validate", path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "1 assets, 1 bundles") {
		t.Fatalf("output = %q", out)
	}
}

func TestValidate_RejectsBrokenCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	body := `{"assets": [], "bundles": [{"id": "gallery", "priority": "high", "assets": ["ghost"]}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := runCommand(t, "validate", path); err == nil {
		t.Fatalf("broken catalog accepted")
	}
}

func TestStatus_PrintsDaemonState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tier":"medium","online":true,"context_lost":false,"cache":{"entries":3,"bytes":4096},"sessions":[],"uptime_sec":42}`))
	}))
	defer srv.Close()

	out, err := runCommand(t, "status", "--addr", srv.URL)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "tier:         medium") || !strings.Contains(out, "3 assets, 4096 bytes") {
		t.Fatalf("output = %q", out)
	}
}

func TestBundles_ListsBundles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bundles":[{"id":"gallery","priority":"high","models":[{"id":"m"}],"textures":[]}]}`))
	}))
	defer srv.Close()

	out, err := runCommand(t, "bundles", "--addr", srv.URL)
	if err != nil {
		t.Fatalf("bundles: %v", err)
	}
	if !strings.Contains(out, "gallery  priority=high models=1 textures=0") {
		t.Fatalf("output = %q", out)
	}
}

func TestStatus_DaemonErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"engine unavailable","code":503}`))
	}))
	defer srv.Close()

	if _, err := runCommand(t, "status", "--addr", srv.URL); err == nil {
		t.Fatalf("expected error from daemon 503")
	}
}
