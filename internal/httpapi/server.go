package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fluxd/internal/gallery"
	"fluxd/internal/manager"
	"fluxd/pkg/types"
)

// Service defines the lifecycle operations required by the HTTP API layer.
// *manager.Manager implements it.
type Service interface {
	Generate(ctx context.Context, req manager.GenerationRequest) (*manager.GenerationResult, error)
	Unload(ctx context.Context) error
	Status(ctx context.Context) manager.StatusSnapshot
	SetIdleTimeout(seconds int) error
	Variants() []types.Variant
	DefaultVariant() string
	SanityCheck(ctx context.Context) manager.SanityReport
}

// Gallery persists generated images and serves the history. *gallery.Gallery
// implements it.
type Gallery interface {
	Save(ctx context.Context, res *manager.GenerationResult, customPath string) (gallery.Entry, error)
	List(ctx context.Context, limit int) ([]types.ImageRecord, error)
	Get(ctx context.Context, id string) (types.ImageRecord, error)
	Preview(rec types.ImageRecord) ([]byte, error)
}

var (
	_ Service = (*manager.Manager)(nil)
	_ Gallery = (*gallery.Gallery)(nil)
)

// NewMux builds the tool-call router.
func NewMux(svc Service, gal Gallery) http.Handler {
	tools := newToolSet(svc, gal)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(corsMiddleware())
	}
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/v1/tools", listToolsHandler(tools))
	r.Post("/v1/tools/{name}", callToolHandler(tools))
	r.Get("/v1/status", statusHandler(svc))
	r.Get("/v1/models", modelsHandler(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", readyHandler(svc))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// listToolsHandler godoc
// @Summary      List tools
// @Description  Tool descriptors with their JSON input schemas.
// @Tags         tools
// @Produce      json
// @Success      200  {object}  types.ToolsResponse
// @Router       /v1/tools [get]
func listToolsHandler(tools *toolSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ToolsResponse{Tools: tools.descriptors()})
	}
}

// callToolHandler godoc
// @Summary      Call a tool
// @Description  Runs one tool. Tool failures are reported in-band with isError set.
// @Tags         tools
// @Accept       json
// @Produce      json
// @Param        name  path      string  true  "tool name"
// @Success      200   {object}  types.ToolResult
// @Failure      400   {object}  types.ToolResult
// @Failure      404   {object}  types.ErrorResponse
// @Failure      415   {object}  types.ErrorResponse
// @Failure      502   {object}  types.ToolResult
// @Failure      507   {object}  types.ToolResult
// @Router       /v1/tools/{name} [post]
func callToolHandler(tools *toolSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if !tools.has(name) {
			toolCallsTotal.WithLabelValues("unknown", "not_found").Inc()
			writeJSONError(w, http.StatusNotFound, unknownToolError{name: name}.Error())
			return
		}
		ct := r.Header.Get("Content-Type")
		if ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if toolTimeout > 0 {
			var stop context.CancelFunc
			ctx, stop = context.WithTimeout(ctx, toolTimeout)
			defer stop()
		}

		res, err := tools.call(ctx, name, raw)
		if err != nil {
			// client went away; nobody is listening
			if r.Context().Err() != nil {
				toolCallsTotal.WithLabelValues(name, "canceled").Inc()
				return
			}
			status := statusFor(err)
			toolCallsTotal.WithLabelValues(name, "error").Inc()
			if status >= 500 {
				zlog.Warn().Str("tool", name).Int("status", status).Err(err).Msg("tool call failed")
			}
			writeJSON(w, status, errorResult(err))
			return
		}
		toolCallsTotal.WithLabelValues(name, "ok").Inc()
		writeJSON(w, http.StatusOK, res)
	}
}

// statusHandler godoc
// @Summary      Lifecycle status
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /v1/status [get]
func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status(r.Context()).StatusResponse())
	}
}

// modelsHandler godoc
// @Summary      Registered variants
// @Tags         status
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /v1/models [get]
func modelsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"default": svc.DefaultVariant(),
			"models":  svc.Variants(),
		})
	}
}

func readyHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep := svc.SanityCheck(r.Context())
		if rep.Reachable {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("engine unavailable: " + rep.Error))
	}
}

// errorResult renders err as an in-band tool error, with the retry hint when
// the error carries one.
func errorResult(err error) types.ToolResult {
	var msg strings.Builder
	msg.WriteString("Error: ")
	msg.WriteString(err.Error())
	if s := manager.Suggestion(err); s != "" {
		msg.WriteString("\nSuggestion: ")
		msg.WriteString(s)
	}
	if p, ok := manager.AttemptedParams(err); ok {
		b, _ := json.Marshal(p)
		msg.WriteString("\nAttempted parameters: ")
		msg.Write(b)
	}
	return types.ErrorResult(msg.String())
}
