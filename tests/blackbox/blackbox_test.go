package blackbox

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil { t.Fatalf("listen: %v", err) }
	addr := ln.Addr().String()
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil { t.Fatalf("split: %v", err) }
	cleanup := func(){ _ = ln.Close() }
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port, cleanup
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok { t.Fatal("runtime.Caller failed") }
	// this file: <root>/tests/blackbox/blackbox_test.go
	bbDir := filepath.Dir(thisFile)
	root := filepath.Dir(filepath.Dir(bbDir))
	return root
}

func buildBinary(t *testing.T) string {
	t.Helper()
	root := projectRootFromThisFile(t)
	outDir := t.TempDir()
	binPath := filepath.Join(outDir, "assetd")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/assetd")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

// glbFixture builds a minimal valid GLB container.
func glbFixture(t *testing.T) []byte {
	t.Helper()
	doc := []byte(`{"asset":{"version":"2.0"}}`)
	for len(doc)%4 != 0 {
		doc = append(doc, ' ')
	}
	var buf bytes.Buffer
	write := func(v uint32) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write(0x46546C67) // magic "glTF"
	write(2)
	write(uint32(12 + 8 + len(doc)))
	write(uint32(len(doc)))
	write(0x4E4F534A) // "JSON"
	buf.Write(doc)
	return buf.Bytes()
}

func pngFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

// startFixtureCDN serves the asset payloads the catalog points at.
func startFixtureCDN(t *testing.T) *httptest.Server {
	t.Helper()
	glb := glbFixture(t)
	tex := pngFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hero.glb":
			_, _ = w.Write(glb)
		case "/wall.png":
			_, _ = w.Write(tex)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeCatalog(t *testing.T, cdnBase string) string {
	t.Helper()
	catalog := fmt.Sprintf(`{
  "assets": [
    {
      "id": "hero-model",
      "kind": "model",
      "baseline": {"codec": "glb", "url": "%s/hero.glb", "size_bytes": 100},
      "priority": "high"
    },
    {
      "id": "wall-texture",
      "kind": "texture",
      "baseline": {"codec": "png", "url": "%s/wall.png", "size_bytes": 100},
      "priority": "medium"
    }
  ],
  "bundles": [{"id": "scene", "priority": "high", "assets": ["hero-model", "wall-texture"]}]
}`, cdnBase, cdnBase)
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(catalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

type serverProc struct {
	cmd  *exec.Cmd
	base string // http base URL, e.g. http://127.0.0.1:18080
}

func startServer(t *testing.T, bin, catalogPath string, port int) *serverProc {
	t.Helper()
	addr := fmt.Sprintf(":%d", port)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, "--addr", addr, "--registry", catalogPath, "--preload=false")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	// Wait for healthz
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK { break }
		}
		if time.Now().After(deadline) {
			_ = cmd.Process.Kill()
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	sp := &serverProc{cmd: cmd, base: base}
	t.Cleanup(func(){ _ = cmd.Process.Kill() })
	return sp
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil { t.Fatalf("new req: %v", err) }
	resp, err := http.DefaultClient.Do(req)
	if err != nil { t.Fatalf("do: %v", err) }
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil { t.Fatalf("new req: %v", err) }
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil { t.Fatalf("do: %v", err) }
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	cdn := startFixtureCDN(t)
	catalog := writeCatalog(t, cdn.URL)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, catalog, port)

	// /healthz and /readyz
	resp, body := get(t, sp.base+"/healthz")
	if resp.StatusCode != http.StatusOK { t.Fatalf("/healthz %d %s", resp.StatusCode, string(body)) }
	resp, body = get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusOK { t.Fatalf("/readyz %d %s", resp.StatusCode, string(body)) }

	// /assets lists the catalog
	resp, body = get(t, sp.base+"/assets")
	if resp.StatusCode != http.StatusOK { t.Fatalf("/assets %d %s", resp.StatusCode, string(body)) }
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") { t.Fatalf("/assets content-type=%s", ct) }
	var assetsResp struct{ Assets []struct{ ID string `json:"id"` } `json:"assets"` }
	if err := json.Unmarshal(body, &assetsResp); err != nil { t.Fatalf("/assets json: %v body=%s", err, string(body)) }
	if len(assetsResp.Assets) != 2 { t.Fatalf("expected 2 assets, got %d", len(assetsResp.Assets)) }

	// Synchronous bundle load pulls both payloads from the fixture CDN
	resp, body = postJSON(t, sp.base+"/bundles/scene/load?wait=1", nil)
	if resp.StatusCode != http.StatusOK { t.Fatalf("load %d %s", resp.StatusCode, string(body)) }

	// /status reflects the warmed cache
	resp, body = get(t, sp.base+"/status")
	if resp.StatusCode != http.StatusOK { t.Fatalf("/status %d %s", resp.StatusCode, string(body)) }
	var statusResp struct {
		Tier  string `json:"tier"`
		Cache struct{ Entries int `json:"entries"` } `json:"cache"`
	}
	if err := json.Unmarshal(body, &statusResp); err != nil { t.Fatalf("/status json: %v body=%s", err, string(body)) }
	if statusResp.Tier != "high" { t.Fatalf("expected high tier, got %q", statusResp.Tier) }
	if statusResp.Cache.Entries != 2 { t.Fatalf("expected 2 cached assets, got %d", statusResp.Cache.Entries) }
}

func TestBlackbox_UnknownBundle_404(t *testing.T) {
	bin := buildBinary(t)
	cdn := startFixtureCDN(t)
	catalog := writeCatalog(t, cdn.URL)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, catalog, port)

	resp, body := postJSON(t, sp.base+"/bundles/ghost/load", nil)
	if resp.StatusCode != http.StatusNotFound { t.Fatalf("expected 404, got %d, body=%s", resp.StatusCode, string(body)) }
}

func TestBlackbox_PerfSample_Accepted(t *testing.T) {
	bin := buildBinary(t)
	cdn := startFixtureCDN(t)
	catalog := writeCatalog(t, cdn.URL)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, catalog, port)

	resp, body := postJSON(t, sp.base+"/perf/sample", []byte(`{"fps":60,"frame_time_std_dev":1.0,"memory_pressure":0.3}`))
	if resp.StatusCode != http.StatusAccepted { t.Fatalf("expected 202, got %d, body=%s", resp.StatusCode, string(body)) }
}
