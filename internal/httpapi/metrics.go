package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"fluxd/internal/manager"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fluxd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fluxd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fluxd",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fluxd",
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fluxd",
			Subsystem: "manager",
			Name:      "loads_total",
			Help:      "Pipeline loads by variant and outcome",
		},
		[]string{"variant", "outcome"},
	)

	unloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fluxd",
			Subsystem: "manager",
			Name:      "unloads_total",
			Help:      "Pipeline unloads by reason",
		},
		[]string{"reason"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fluxd",
			Subsystem: "manager",
			Name:      "generations_total",
			Help:      "Generations by variant and outcome",
		},
		[]string{"variant", "outcome"},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fluxd",
			Subsystem: "manager",
			Name:      "generation_duration_seconds",
			Help:      "Synthesis time of successful generations",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 60, 120, 300},
		},
	)

	resourceLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fluxd",
			Subsystem: "manager",
			Name:      "resource_loaded",
			Help:      "1 while a pipeline is resident",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration, httpInflight, toolCallsTotal,
		loadsTotal, unloadsTotal, generationsTotal, generationDuration, resourceLoaded,
	)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inflight := httpInflight.WithLabelValues(r.URL.Path)
		inflight.Inc()
		defer inflight.Dec()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		// the route pattern is only known once chi has routed the request
		path := routePatternOrPath(r)
		statusLabel := strconv.Itoa(sr.status)
		httpRequestsTotal.WithLabelValues(path, r.Method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, statusLabel).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// MetricsPublisher turns manager events into Prometheus samples.
type MetricsPublisher struct{}

// Publish implements manager.EventPublisher.
func (MetricsPublisher) Publish(e manager.Event) {
	switch e.Name {
	case "load_done":
		loadsTotal.WithLabelValues(e.Variant, "ok").Inc()
		resourceLoaded.Set(1)
	case "load_error":
		loadsTotal.WithLabelValues(e.Variant, "error").Inc()
	case "unload_done":
		reason, _ := e.Fields["reason"].(string)
		if reason == "" {
			reason = "unspecified"
		}
		unloadsTotal.WithLabelValues(reason).Inc()
		resourceLoaded.Set(0)
	case "generate_done":
		generationsTotal.WithLabelValues(e.Variant, "ok").Inc()
		if ms, ok := e.Fields["duration_ms"].(int64); ok {
			generationDuration.Observe(float64(ms) / 1000)
		}
	case "generate_error":
		generationsTotal.WithLabelValues(e.Variant, "error").Inc()
	}
}
