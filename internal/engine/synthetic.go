package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"
)

// SyntheticConfig configures a SyntheticEngine.
type SyntheticConfig struct {
	// LoadDelay simulates weight loading.
	LoadDelay time.Duration
	// PipelineBytes is the simulated footprint of one resident pipeline.
	PipelineBytes uint64
	// CapacityBytes is the simulated accelerator size. Zero means unlimited.
	CapacityBytes uint64
	// MaxPixels makes Synthesize fail with ErrOutOfMemory above width*height.
	// Zero means unlimited.
	MaxPixels int
}

// SyntheticEngine renders deterministic gradients from (prompt, seed). It
// needs no accelerator and is used for development and tests.
type SyntheticEngine struct {
	cfg SyntheticConfig

	mu       sync.Mutex
	resident int
}

// NewSynthetic constructs a SyntheticEngine.
func NewSynthetic(cfg SyntheticConfig) *SyntheticEngine {
	if cfg.PipelineBytes == 0 {
		cfg.PipelineBytes = 1 << 30
	}
	return &SyntheticEngine{cfg: cfg}
}

func (s *SyntheticEngine) Name() string { return "synthetic" }

func (s *SyntheticEngine) Load(ctx context.Context, spec LoadSpec) (Pipeline, error) {
	if spec.ModelID == "" {
		return nil, errors.New("model id is empty")
	}
	if s.cfg.LoadDelay > 0 {
		select {
		case <-time.After(s.cfg.LoadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	need := uint64(s.resident+1) * s.cfg.PipelineBytes
	if s.cfg.CapacityBytes > 0 && need > s.cfg.CapacityBytes {
		return nil, fmt.Errorf("%w: loading %s needs %d bytes", ErrOutOfMemory, spec.ModelID, need)
	}
	s.resident++
	return &syntheticPipeline{s: s, modelID: spec.ModelID}, nil
}

// Resident reports how many pipelines are loaded.
func (s *SyntheticEngine) Resident() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resident
}

func (s *SyntheticEngine) Utilization(ctx context.Context) (Utilization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := uint64(s.resident) * s.cfg.PipelineBytes
	return Utilization{Device: "synthetic", AllocatedBytes: used, ReservedBytes: used, TotalBytes: s.cfg.CapacityBytes}, nil
}

type syntheticPipeline struct {
	s       *SyntheticEngine
	modelID string
	once    sync.Once
}

func (p *syntheticPipeline) Synthesize(ctx context.Context, params Params) (Image, error) {
	if params.Width <= 0 || params.Height <= 0 {
		return Image{}, fmt.Errorf("invalid size %dx%d", params.Width, params.Height)
	}
	if limit := p.s.cfg.MaxPixels; limit > 0 && params.Width*params.Height > limit {
		return Image{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrOutOfMemory, params.Width, params.Height, limit)
	}
	b, err := Render(params)
	if err != nil {
		return Image{}, err
	}
	return Image{PNG: b}, nil
}

func (p *syntheticPipeline) Close() error {
	p.once.Do(func() {
		p.s.mu.Lock()
		p.s.resident--
		p.s.mu.Unlock()
	})
	return nil
}

// Render draws a two-colour diagonal gradient derived from the prompt and
// seed and encodes it as PNG. Equal params give equal bytes.
func Render(params Params) ([]byte, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(params.Prompt))
	key := h.Sum64() ^ uint64(params.Seed)*0x9e3779b97f4a7c15
	from := color.RGBA{R: uint8(key), G: uint8(key >> 8), B: uint8(key >> 16), A: 0xff}
	to := color.RGBA{R: uint8(key >> 24), G: uint8(key >> 32), B: uint8(key >> 40), A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, params.Width, params.Height))
	span := params.Width + params.Height - 2
	if span <= 0 {
		span = 1
	}
	for y := 0; y < params.Height; y++ {
		for x := 0; x < params.Width; x++ {
			t := (x + y) * 255 / span
			img.SetRGBA(x, y, color.RGBA{
				R: lerp(from.R, to.R, t),
				G: lerp(from.G, to.G, t),
				B: lerp(from.B, to.B, t),
				A: 0xff,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func lerp(a, b uint8, t int) uint8 {
	return uint8((int(a)*(255-t) + int(b)*t) / 255)
}
