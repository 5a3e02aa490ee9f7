package e2e

import (
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"fluxd/internal/engine"
	"fluxd/pkg/types"
)

type genArgs struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Seed   *int64 `json:"seed,omitempty"`
}

func seed(n int64) *int64 { return &n }

func imageData(res types.ToolResult) string {
	for _, c := range res.Content {
		if c.Type == "image" {
			return c.Data
		}
	}
	return ""
}

// TestE2E_IdleEviction loads on first use and unloads after the idle timeout
// without any further request.
func TestE2E_IdleEviction(t *testing.T) {
	s := newStack(t, engine.SyntheticConfig{}, 1)
	if st := s.status(t); st.ModelLoaded || st.State != "unloaded" {
		t.Fatalf("initial status: %+v", st)
	}
	code, res := s.call(t, "generate_image", genArgs{Prompt: "a pier", Width: 256, Height: 256})
	if code != http.StatusOK || res.IsError {
		t.Fatalf("generate: %d %+v", code, res)
	}
	st := s.status(t)
	if !st.ModelLoaded || st.CurrentModel != "flux2-dev" || st.TimeUntilUnload == nil {
		t.Fatalf("status after generate: %+v", st)
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.status(t).ModelLoaded {
		if time.Now().After(deadline) {
			t.Fatal("model was not evicted")
		}
		time.Sleep(50 * time.Millisecond)
	}
	if n := s.eng.Resident(); n != 0 {
		t.Fatalf("resident=%d after eviction", n)
	}

	// next request reloads transparently
	code, res = s.call(t, "generate_image", genArgs{Prompt: "a pier", Width: 256, Height: 256})
	if code != http.StatusOK || res.IsError {
		t.Fatalf("generate after eviction: %d %+v", code, res)
	}
	if n := s.eng.Resident(); n != 1 {
		t.Fatalf("resident=%d after reload", n)
	}
}

// TestE2E_VariantSwapFreesOldPipelineFirst runs on an accelerator that fits
// exactly one pipeline, so a swap only succeeds if the old one is released
// before the new one loads.
func TestE2E_VariantSwapFreesOldPipelineFirst(t *testing.T) {
	s := newStack(t, engine.SyntheticConfig{PipelineBytes: 1 << 30, CapacityBytes: 1 << 30}, 0)
	for _, v := range []string{"flux1-dev", "flux2-dev", "flux1-dev"} {
		code, res := s.call(t, "generate_image", genArgs{Prompt: "lake", Model: v, Width: 256, Height: 256})
		if code != http.StatusOK || res.IsError {
			t.Fatalf("generate with %s: %d %+v", v, code, res)
		}
		if st := s.status(t); st.CurrentModel != v {
			t.Fatalf("current model %q, want %q", st.CurrentModel, v)
		}
		if n := s.eng.Resident(); n != 1 {
			t.Fatalf("resident=%d after switching to %s", n, v)
		}
	}
}

// TestE2E_ConcurrentCallsShareOneLoad issues parallel generations against a
// cold manager; they serialize and reuse a single pipeline.
func TestE2E_ConcurrentCallsShareOneLoad(t *testing.T) {
	s := newStack(t, engine.SyntheticConfig{LoadDelay: 50 * time.Millisecond, PipelineBytes: 1 << 30, CapacityBytes: 1 << 30}, 0)
	const n = 4
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], _ = s.call(t, "generate_image", genArgs{Prompt: "crowd", Width: 256, Height: 256, Seed: seed(int64(i))})
		}(i)
	}
	wg.Wait()
	for i, c := range codes {
		if c != http.StatusOK {
			t.Fatalf("call %d: status %d", i, c)
		}
	}
	if r := s.eng.Resident(); r != 1 {
		t.Fatalf("resident=%d", r)
	}
	_, res := s.call(t, "list_images", map[string]int{"limit": 10})
	if got := strings.Count(res.Content[0].Text, "\n- "); got != n {
		t.Fatalf("history has %d entries:\n%s", got, res.Content[0].Text)
	}
}

// TestE2E_SeedReproducesImage checks the same prompt and seed render the same
// pixels across an unload.
func TestE2E_SeedReproducesImage(t *testing.T) {
	s := newStack(t, engine.SyntheticConfig{}, 0)
	args := genArgs{Prompt: "red barn", Width: 256, Height: 256, Seed: seed(42)}
	_, first := s.call(t, "generate_image", args)
	if code, res := s.call(t, "unload_model", nil); code != http.StatusOK || res.IsError {
		t.Fatalf("unload: %d %+v", code, res)
	}
	_, second := s.call(t, "generate_image", args)
	a, b := imageData(first), imageData(second)
	if a == "" || a != b {
		t.Fatal("thumbnails differ for the same seed")
	}
	if !strings.Contains(second.Content[0].Text, "Seed: 42") {
		t.Fatalf("text: %s", second.Content[0].Text)
	}
}

// TestE2E_SetTimeoutAppliesToNextUse disables eviction at runtime.
func TestE2E_SetTimeoutAppliesToNextUse(t *testing.T) {
	s := newStack(t, engine.SyntheticConfig{}, 300)
	code, res := s.call(t, "set_timeout", map[string]int{"timeout_seconds": 0})
	if code != http.StatusOK || !strings.HasPrefix(res.Content[0].Text, "Auto-unload disabled") {
		t.Fatalf("set_timeout: %d %+v", code, res)
	}
	s.call(t, "generate_image", genArgs{Prompt: "x", Width: 256, Height: 256})
	st := s.status(t)
	if st.TimeoutSeconds != 0 || st.TimeUntilUnload != nil || !st.ModelLoaded {
		t.Fatalf("status: %+v", st)
	}
}
