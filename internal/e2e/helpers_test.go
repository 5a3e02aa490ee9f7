package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"fluxd/internal/artifact"
	"fluxd/internal/engine"
	"fluxd/internal/gallery"
	"fluxd/internal/history"
	"fluxd/internal/httpapi"
	"fluxd/internal/manager"
	"fluxd/internal/registry"
	"fluxd/pkg/types"
)

type stack struct {
	srv *httptest.Server
	m   *manager.Manager
	eng *engine.SyntheticEngine
	dir string
}

// newStack wires the synthetic engine, manager, gallery with history and the
// HTTP tool server the way `fluxd serve` does.
func newStack(t *testing.T, ecfg engine.SyntheticConfig, idleSeconds int) *stack {
	t.Helper()
	dir := t.TempDir()
	eng := engine.NewSynthetic(ecfg)
	log := zerolog.Nop()
	m, err := manager.NewWithConfig(manager.ManagerConfig{
		Engine:             eng,
		Variants:           registry.Builtin(),
		DefaultVariant:     "flux2-dev",
		GlobalSteps:        50,
		GlobalGuidance:     7.5,
		IdleTimeoutSeconds: idleSeconds,
		Logger:             &log,
		Publisher:          httpapi.MetricsPublisher{},
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	store, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	gal := gallery.New(artifact.NewWriter(filepath.Join(dir, "out")), store, log)
	srv := httptest.NewServer(httpapi.NewMux(m, gal))
	t.Cleanup(func() {
		srv.Close()
		_ = m.Close(context.Background())
		_ = store.Close()
	})
	return &stack{srv: srv, m: m, eng: eng, dir: dir}
}

func (s *stack) call(t *testing.T, tool string, args any) (int, types.ToolResult) {
	t.Helper()
	payload, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, body := httpPostJSON(t, s.srv.URL+"/v1/tools/"+tool, payload)
	var res types.ToolResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode %s result (%d): %v: %s", tool, resp.StatusCode, err, body)
	}
	return resp.StatusCode, res
}

func (s *stack) status(t *testing.T) types.StatusResponse {
	t.Helper()
	resp, body := httpGet(t, s.srv.URL+"/v1/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
