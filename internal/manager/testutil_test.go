package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fluxd/internal/engine"
	"fluxd/pkg/types"
)

// fakeEngine records lifecycle calls and detects overlapping work.
type fakeEngine struct {
	mu          sync.Mutex
	loads       []string
	closes      []string
	resident    int
	maxResident int
	lastParams  engine.Params

	loadErr    error
	synthErr   error
	closeErr   error
	synthDelay time.Duration
	util       *engine.Utilization

	active   atomic.Int32
	overlaps atomic.Int32
	calls    atomic.Int32
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Load(ctx context.Context, spec engine.LoadSpec) (engine.Pipeline, error) {
	f.enter()
	defer f.active.Add(-1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	f.loads = append(f.loads, spec.Variant)
	f.resident++
	if f.resident > f.maxResident {
		f.maxResident = f.resident
	}
	return &fakePipeline{f: f, variant: spec.Variant}, nil
}

func (f *fakeEngine) Utilization(ctx context.Context) (engine.Utilization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.util == nil {
		return engine.Utilization{}, engine.ErrUnavailable
	}
	return *f.util, nil
}

// enter counts concurrent engine calls.
func (f *fakeEngine) enter() {
	f.calls.Add(1)
	if f.active.Add(1) > 1 {
		f.overlaps.Add(1)
	}
}

func (f *fakeEngine) snapshot() (loads, closes []string, maxResident int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...), append([]string(nil), f.closes...), f.maxResident
}

type fakePipeline struct {
	f       *fakeEngine
	variant string
}

func (p *fakePipeline) Synthesize(ctx context.Context, params engine.Params) (engine.Image, error) {
	p.f.enter()
	defer p.f.active.Add(-1)
	if p.f.synthDelay > 0 {
		time.Sleep(p.f.synthDelay)
	}
	p.f.mu.Lock()
	defer p.f.mu.Unlock()
	p.f.lastParams = params
	if p.f.synthErr != nil {
		return engine.Image{}, p.f.synthErr
	}
	return engine.Image{PNG: []byte("\x89PNG\r\n\x1a\nfake")}, nil
}

func (p *fakePipeline) Close() error {
	p.f.enter()
	defer p.f.active.Add(-1)
	p.f.mu.Lock()
	defer p.f.mu.Unlock()
	p.f.closes = append(p.f.closes, p.variant)
	p.f.resident--
	return p.f.closeErr
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var testVariants = []types.Variant{
	{Name: "A", ModelID: "org/model-a", DefaultSteps: 20, DefaultGuidance: 2.5},
	{Name: "B", ModelID: "org/model-b", DefaultSteps: 40, DefaultGuidance: 5},
}

// newTestManager builds a manager over a fake engine with a memory publisher.
func newTestManager(t *testing.T, timeout int) (*Manager, *fakeEngine, *MemoryPublisher) {
	t.Helper()
	fe := &fakeEngine{}
	pub := NewMemoryPublisher()
	m, err := NewWithConfig(ManagerConfig{
		Engine:             fe,
		Variants:           testVariants,
		DefaultVariant:     "A",
		GlobalSteps:        30,
		GlobalGuidance:     7.5,
		IdleTimeoutSeconds: timeout,
		Publisher:          pub,
		SeedSource:         func() int64 { return 1234 },
	})
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(func() { m.timer.cancel() })
	return m, fe, pub
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func intp(n int) *int         { return &n }
func f64p(f float64) *float64 { return &f }
func i64p(n int64) *int64     { return &n }
