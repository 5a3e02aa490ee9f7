package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPConfig configures an HTTPEngine.
type HTTPConfig struct {
	BaseURL string
	// LoadTimeout bounds pipeline creation. Zero means 10 minutes.
	LoadTimeout time.Duration
	Logger      zerolog.Logger
	Client      *http.Client
}

// HTTPEngine talks to a diffusion worker over JSON/HTTP:
//
//	POST   /v1/pipelines               {"model_id","cache_dir"} -> {"pipeline_id"}
//	POST   /v1/pipelines/{id}/generate Params -> image/png
//	DELETE /v1/pipelines/{id}
//	GET    /v1/memory                  -> memory figures
//	GET    /healthz
type HTTPEngine struct {
	baseURL     string
	loadTimeout time.Duration
	client      *http.Client
	log         zerolog.Logger
}

// NewHTTP constructs an HTTPEngine. The client carries no global timeout:
// every call uses a context deadline.
func NewHTTP(cfg HTTPConfig) *HTTPEngine {
	cli := cfg.Client
	if cli == nil {
		cli = &http.Client{Timeout: 0}
	}
	lt := cfg.LoadTimeout
	if lt <= 0 {
		lt = 10 * time.Minute
	}
	return &HTTPEngine{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		loadTimeout: lt,
		client:      cli,
		log:         cfg.Logger.With().Str("engine", "http").Logger(),
	}
}

func (e *HTTPEngine) Name() string { return "http" }

// BaseURL returns the worker address.
func (e *HTTPEngine) BaseURL() string { return e.baseURL }

type createPipelineRequest struct {
	ModelID  string `json:"model_id"`
	Variant  string `json:"variant,omitempty"`
	CacheDir string `json:"cache_dir,omitempty"`
}

type createPipelineResponse struct {
	PipelineID string `json:"pipeline_id"`
}

type workerError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type memoryResponse struct {
	Device         string `json:"device"`
	AllocatedBytes uint64 `json:"allocated_bytes"`
	ReservedBytes  uint64 `json:"reserved_bytes"`
	TotalBytes     uint64 `json:"total_bytes"`
}

// Load asks the worker to build a pipeline for spec.ModelID.
func (e *HTTPEngine) Load(ctx context.Context, spec LoadSpec) (Pipeline, error) {
	if strings.TrimSpace(spec.ModelID) == "" {
		return nil, errors.New("model id is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, e.loadTimeout)
	defer cancel()
	body, _ := json.Marshal(createPipelineRequest{ModelID: spec.ModelID, Variant: spec.Variant, CacheDir: spec.CacheDir})
	resp, err := e.do(ctx, http.MethodPost, "/v1/pipelines", body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("create pipeline %s: %w", spec.ModelID, err)
	}
	var out createPipelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode pipeline response: %w", err)
	}
	if out.PipelineID == "" {
		return nil, errors.New("worker returned empty pipeline id")
	}
	e.log.Debug().Str("model_id", spec.ModelID).Str("pipeline", out.PipelineID).Msg("pipeline created")
	return &httpPipeline{e: e, id: out.PipelineID}, nil
}

// Utilization queries GET /v1/memory.
func (e *HTTPEngine) Utilization(ctx context.Context) (Utilization, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := e.do(ctx, http.MethodGet, "/v1/memory", nil, "")
	if err != nil {
		return Utilization{}, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return Utilization{}, err
	}
	var m memoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return Utilization{}, fmt.Errorf("decode memory response: %w", err)
	}
	return Utilization{Device: m.Device, AllocatedBytes: m.AllocatedBytes, ReservedBytes: m.ReservedBytes, TotalBytes: m.TotalBytes}, nil
}

// Healthy reports whether GET /healthz answers 2xx within timeout.
func (e *HTTPEngine) Healthy(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := e.do(ctx, http.MethodGet, "/healthz", nil, "")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Check reports an error unless the worker answers its health probe.
func (e *HTTPEngine) Check(ctx context.Context) error {
	if !e.Healthy(ctx, 2*time.Second) {
		return fmt.Errorf("%w: %s not healthy", ErrUnavailable, e.baseURL)
	}
	return nil
}

func (e *HTTPEngine) do(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, uerr.Err)
		}
		return nil, err
	}
	return resp, nil
}

// checkStatus maps non-2xx responses to errors. 507 or an out_of_memory code
// is reported as ErrOutOfMemory.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var we workerError
	_ = json.Unmarshal(b, &we)
	msg := we.Error
	if msg == "" {
		msg = strings.TrimSpace(string(b))
	}
	switch {
	case resp.StatusCode == http.StatusInsufficientStorage || we.Code == "out_of_memory":
		return fmt.Errorf("%w: %s", ErrOutOfMemory, msg)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	}
	return fmt.Errorf("worker http error: %s: %s", resp.Status, msg)
}

type httpPipeline struct {
	e  *HTTPEngine
	id string
}

func (p *httpPipeline) Synthesize(ctx context.Context, params Params) (Image, error) {
	body, _ := json.Marshal(params)
	resp, err := p.e.do(ctx, http.MethodPost, "/v1/pipelines/"+url.PathEscape(p.id)+"/generate", body, "application/json")
	if err != nil {
		return Image{}, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return Image{}, err
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	if !IsPNG(b) {
		return Image{}, errors.New("worker returned non-PNG payload")
	}
	return Image{PNG: b}, nil
}

func (p *httpPipeline) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	resp, err := p.e.do(ctx, http.MethodDelete, "/v1/pipelines/"+url.PathEscape(p.id), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return checkStatus(resp)
}
