package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"fluxd/internal/engine"
)

func TestSetMaxBodyBytes_ResetsOnNonPositive(t *testing.T) {
	SetMaxBodyBytes(42)
	if maxBodyBytes != 42 {
		t.Fatalf("max=%d", maxBodyBytes)
	}
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default, got %d", maxBodyBytes)
	}
}

func TestCORS_PreflightWhenEnabled(t *testing.T) {
	SetCORSOptions(true, []string{"http://localhost:3000"}, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)
	ts := newTestServer(t, engine.SyntheticConfig{}, false)

	req := httptest.NewRequest(http.MethodOptions, "/v1/tools/get_status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	ts.h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin=%q status=%d", got, rr.Code)
	}
}

func TestCORS_DisabledByDefault(t *testing.T) {
	ts := newTestServer(t, engine.SyntheticConfig{}, false)
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	ts.h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}
