package manager

import (
	"fmt"
	"time"

	"fluxd/internal/engine"
	"fluxd/pkg/types"
)

// State is the lifecycle state of the resource handle.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
)

// transitions lists the legal handle moves. Loaded never goes straight to
// Loading: a switch is an unload followed by a load.
var transitions = map[State][]State{
	StateUnloaded: {StateLoading},
	StateLoading:  {StateLoaded, StateUnloaded},
	StateLoaded:   {StateUnloaded},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// handle is the resident resource. variant is empty iff nothing is resident;
// lastAccessedAt is set only while loaded.
type handle struct {
	state          State
	variant        types.Variant
	loadedAt       time.Time
	lastAccessedAt time.Time
	pipeline       engine.Pipeline
}

// moveTo applies a validated transition. Leaving Loaded or Loading for
// Unloaded clears everything.
func (h *handle) moveTo(to State) error {
	if !canTransition(h.state, to) {
		return fmt.Errorf("illegal state transition %s -> %s", h.state, to)
	}
	if to == StateUnloaded {
		*h = handle{state: StateUnloaded}
		return nil
	}
	h.state = to
	return nil
}

// GenerationRequest asks for one image. Nil/zero optionals are resolved by
// the session: Steps and Guidance from the variant then global defaults,
// Width/Height default to 1024, Seed is drawn at random.
type GenerationRequest struct {
	Prompt   string
	Variant  string
	Steps    *int
	Guidance *float64
	Width    int
	Height   int
	Seed     *int64
}

// GenerationResult carries the image and every resolved setting.
type GenerationResult struct {
	ID        string
	Image     []byte
	Prompt    string
	Seed      int64
	Steps     int
	Guidance  float64
	Width     int
	Height    int
	Variant   string
	ModelID   string
	Elapsed   time.Duration
	Timestamp time.Time
}

// StatusSnapshot is a read-only projection of the manager.
type StatusSnapshot struct {
	State              State
	Loaded             bool
	Variant            string
	ModelID            string
	LoadedAt           time.Time
	LastAccess         time.Time
	IdleTimeoutSeconds int
	// EvictionIn is nil when eviction is disabled or nothing is loaded.
	EvictionIn  *time.Duration
	Utilization *engine.Utilization

	LoadsTotal       uint64
	UnloadsTotal     uint64
	EvictionsTotal   uint64
	GenerationsTotal uint64
	Uptime           time.Duration
}
