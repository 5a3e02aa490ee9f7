package manager

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"fluxd/internal/engine"
)

func TestGenerate_LoadOutOfMemory(t *testing.T) {
	m, fe, pub := newTestManager(t, 300)
	fe.loadErr = fmt.Errorf("%w: 24GB needed", engine.ErrOutOfMemory)
	_, err := m.Generate(testCtx(t), GenerationRequest{Prompt: "x"})
	if !IsResourceExhausted(err) {
		t.Fatalf("expected resource exhausted, got %v", err)
	}
	if !errors.Is(err, engine.ErrOutOfMemory) {
		t.Fatalf("cause lost: %v", err)
	}
	if Suggestion(err) == "" {
		t.Fatalf("no suggestion")
	}
	if _, ok := AttemptedParams(err); ok {
		t.Fatalf("load failure should carry no params")
	}
	if s := m.Status(testCtx(t)); s.State != StateUnloaded || s.Variant != "" {
		t.Fatalf("status=%+v", s)
	}
	if pub.Count("load_error") != 1 || m.timer.pending() {
		t.Fatalf("events=%v", pub.Names())
	}
}

func TestGenerate_SynthesisOutOfMemoryKeepsPipeline(t *testing.T) {
	m, fe, _ := newTestManager(t, 300)
	fe.synthErr = fmt.Errorf("%w: activations", engine.ErrOutOfMemory)
	_, err := m.Generate(testCtx(t), GenerationRequest{Prompt: "x", Width: 1024, Height: 1024, Seed: i64p(5)})
	if !IsResourceExhausted(err) {
		t.Fatalf("expected resource exhausted, got %v", err)
	}
	if got := Suggestion(err); got != "try a lower resolution, e.g. width 768 height 768" {
		t.Fatalf("suggestion=%q", got)
	}
	if w, h, ok := SmallerSize(err); !ok || w != 768 || h != 768 {
		t.Fatalf("smaller size=%dx%d ok=%v", w, h, ok)
	}
	p, ok := AttemptedParams(err)
	if !ok || p.Width != 1024 || p.Steps != 20 || p.Seed != 5 {
		t.Fatalf("attempted=%+v ok=%v", p, ok)
	}
	if !m.Loaded() || !m.timer.pending() {
		t.Fatalf("pipeline should stay resident with the timer rearmed")
	}
}

func TestGenerate_EngineFailureCarriesParams(t *testing.T) {
	m, fe, pub := newTestManager(t, 0)
	fe.synthErr = errors.New("nan in latents")
	_, err := m.Generate(testCtx(t), GenerationRequest{Prompt: "x", Seed: i64p(77)})
	if !IsEngineFailure(err) || IsResourceExhausted(err) {
		t.Fatalf("expected engine failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "seed 77") {
		t.Fatalf("message lacks params: %v", err)
	}
	if p, ok := AttemptedParams(err); !ok || p.Seed != 77 {
		t.Fatalf("attempted=%+v", p)
	}
	if Suggestion(err) != "" {
		t.Fatalf("unexpected suggestion")
	}
	if _, _, ok := SmallerSize(err); ok {
		t.Fatalf("engine failure should not propose a size")
	}
	if pub.Count("generate_error") != 1 || m.Status(testCtx(t)).GenerationsTotal != 0 {
		t.Fatalf("events=%v", pub.Names())
	}
}

func TestShrink(t *testing.T) {
	cases := map[int]int{1024: 768, 2048: 1536, 1000: 744, 300: 256, 256: 256}
	for in, want := range cases {
		if got := shrink(in); got != want {
			t.Fatalf("shrink(%d)=%d want %d", in, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	if err := classify("load", "A", nil, engine.ErrOutOfMemory); !IsResourceExhausted(err) {
		t.Fatalf("got %v", err)
	}
	if err := classify("load", "A", nil, engine.ErrUnavailable); !IsEngineFailure(err) || !errors.Is(err, engine.ErrUnavailable) {
		t.Fatalf("got %v", err)
	}
	if IsInvalidParameter(errors.New("x")) || IsInvalidConfiguration(nil) {
		t.Fatalf("predicates matched unrelated errors")
	}
}
