package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fluxd/internal/artifact"
	"fluxd/internal/engine"
	"fluxd/internal/gallery"
	"fluxd/internal/manager"
)

type brokenEngine struct{}

func (brokenEngine) Name() string { return "broken" }
func (brokenEngine) Load(ctx context.Context, spec engine.LoadSpec) (engine.Pipeline, error) {
	return nil, errors.New("worker crashed")
}
func (brokenEngine) Utilization(ctx context.Context) (engine.Utilization, error) {
	return engine.Utilization{}, engine.ErrUnavailable
}

type teapotError struct{}

func (teapotError) Error() string   { return "short and stout" }
func (teapotError) StatusCode() int { return http.StatusTeapot }

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{teapotError{}, http.StatusTeapot},
		{fmt.Errorf("wrapped: %w", teapotError{}), http.StatusTeapot},
		{badRequestError{msg: "x"}, http.StatusBadRequest},
		{unknownToolError{name: "x"}, http.StatusNotFound},
		{gallery.ErrNotFound, http.StatusNotFound},
		{gallery.ErrHistoryDisabled, http.StatusNotImplemented},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Fatalf("statusFor(%v)=%d want %d", c.err, got, c.want)
		}
	}
}

func TestGenerateImage_EngineFailureIs502(t *testing.T) {
	m, err := manager.NewWithConfig(manager.ManagerConfig{Engine: brokenEngine{}})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	h := NewMux(m, gallery.New(artifact.NewWriter(t.TempDir()), nil, zerolog.Nop()))
	rr, res := callTool(t, h, "generate_image", `{"prompt":"x","width":256,"height":256}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !res.IsError || !strings.Contains(res.Content[0].Text, "worker crashed") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if m.Loaded() {
		t.Fatalf("failed load left the model resident")
	}
}

func TestGenerateImage_ToolTimeoutWhileWaiting(t *testing.T) {
	ts := newTestServer(t, engine.SyntheticConfig{LoadDelay: 300 * time.Millisecond}, false)

	done := make(chan int, 1)
	go func() {
		rr, _ := callTool(t, ts.h, "generate_image", `{"prompt":"first","width":256,"height":256,"steps":1}`)
		done <- rr.Code
	}()
	deadline := time.Now().Add(2 * time.Second)
	for ts.m.Status(context.Background()).State != manager.StateLoading {
		if time.Now().After(deadline) {
			t.Fatal("first call never started loading")
		}
		time.Sleep(2 * time.Millisecond)
	}

	SetToolTimeout(20 * time.Millisecond)
	rr, res := callTool(t, ts.h, "generate_image", `{"prompt":"second","width":256,"height":256,"steps":1}`)
	SetToolTimeout(0)
	if rr.Code != http.StatusGatewayTimeout || !res.IsError {
		t.Fatalf("expected 504 in-band error, got %d %+v", rr.Code, res)
	}
	if code := <-done; code != http.StatusOK {
		t.Fatalf("first call status=%d", code)
	}
}
