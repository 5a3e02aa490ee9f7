package engine

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"
)

func TestRender_DeterministicAndSized(t *testing.T) {
	p := Params{Prompt: "a red fox", Steps: 1, Guidance: 1, Width: 256, Height: 264, Seed: 7}
	a, err := Render(p)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b, _ := Render(p)
	if !bytes.Equal(a, b) {
		t.Fatalf("same params rendered different bytes")
	}
	p.Seed = 8
	c, _ := Render(p)
	if bytes.Equal(a, c) {
		t.Fatalf("different seed rendered same bytes")
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(a))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 256 || cfg.Height != 264 {
		t.Fatalf("size=%dx%d", cfg.Width, cfg.Height)
	}
}

func TestSynthetic_CapacityAndResidency(t *testing.T) {
	e := NewSynthetic(SyntheticConfig{PipelineBytes: 10, CapacityBytes: 15})
	p1, err := e.Load(context.Background(), LoadSpec{ModelID: "a"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := e.Load(context.Background(), LoadSpec{ModelID: "b"}); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory on double residency, got %v", err)
	}
	u, _ := e.Utilization(context.Background())
	if u.AllocatedBytes != 10 {
		t.Fatalf("allocated=%d", u.AllocatedBytes)
	}
	_ = p1.Close()
	_ = p1.Close()
	if e.Resident() != 0 {
		t.Fatalf("resident=%d after close", e.Resident())
	}
}

func TestSynthetic_MaxPixels(t *testing.T) {
	e := NewSynthetic(SyntheticConfig{MaxPixels: 512 * 512})
	p, _ := e.Load(context.Background(), LoadSpec{ModelID: "a"})
	_, err := p.Synthesize(context.Background(), Params{Prompt: "x", Width: 1024, Height: 1024, Steps: 1, Guidance: 1})
	if !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
}
