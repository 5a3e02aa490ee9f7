package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"fluxd/internal/engine"
	"fluxd/internal/manager"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", rr.Code)
	}
	return rr.Body.Bytes()
}

func TestMetricsMiddleware_EmitsRequestCounters(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !bytes.Contains(scrape(t), []byte("fluxd_http_requests_total")) {
		t.Fatalf("expected fluxd_http_requests_total in metrics")
	}
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Post("/v1/tools/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/v1/tools/{name}", http.MethodPost, "202"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/tools/get_status", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/tools/list_models", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/v1/tools/{name}", http.MethodPost, "202"))
	if after-before != 2 {
		t.Fatalf("expected both calls under the route pattern, delta=%v", after-before)
	}
}

func TestMetricsPublisher(t *testing.T) {
	var p manager.EventPublisher = MetricsPublisher{}

	loads := testutil.ToFloat64(loadsTotal.WithLabelValues("flux2-dev", "ok"))
	idle := testutil.ToFloat64(unloadsTotal.WithLabelValues("idle"))
	gens := testutil.ToFloat64(generationsTotal.WithLabelValues("flux2-dev", "error"))

	p.Publish(manager.Event{Name: "load_done", Variant: "flux2-dev"})
	if got := testutil.ToFloat64(resourceLoaded); got != 1 {
		t.Fatalf("resource_loaded=%v after load", got)
	}
	p.Publish(manager.Event{Name: "generate_done", Variant: "flux2-dev", Fields: map[string]any{"duration_ms": int64(1500)}})
	p.Publish(manager.Event{Name: "generate_error", Variant: "flux2-dev"})
	p.Publish(manager.Event{Name: "unload_done", Variant: "flux2-dev", Fields: map[string]any{"reason": "idle"}})

	if got := testutil.ToFloat64(resourceLoaded); got != 0 {
		t.Fatalf("resource_loaded=%v after unload", got)
	}
	if d := testutil.ToFloat64(loadsTotal.WithLabelValues("flux2-dev", "ok")) - loads; d != 1 {
		t.Fatalf("loads delta=%v", d)
	}
	if d := testutil.ToFloat64(unloadsTotal.WithLabelValues("idle")) - idle; d != 1 {
		t.Fatalf("idle unloads delta=%v", d)
	}
	if d := testutil.ToFloat64(generationsTotal.WithLabelValues("flux2-dev", "error")) - gens; d != 1 {
		t.Fatalf("generation errors delta=%v", d)
	}
	// unknown events are ignored
	p.Publish(manager.Event{Name: "evict_skip"})
}

func TestMetricsEndpointServed(t *testing.T) {
	ts := newTestServer(t, engine.SyntheticConfig{}, false)
	rr := httptest.NewRecorder()
	ts.h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !bytes.Contains(rr.Body.Bytes(), []byte("fluxd_manager_resource_loaded")) {
		t.Fatalf("status=%d", rr.Code)
	}
}
