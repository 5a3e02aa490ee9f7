package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"fluxd/internal/engine"
	"fluxd/internal/registry"
	"fluxd/pkg/types"
)

// Manager is the Resource Lifecycle Manager. Construct one per process and
// share it between front ends.
type Manager struct {
	// slot is the exclusive section: size 1, one load/unload/synthesis in flight.
	slot chan struct{}

	// stateMu guards h and idleTimeout. Writers hold slot as well, so
	// readers only ever wait for a snapshot copy.
	stateMu     sync.RWMutex
	h           handle
	idleTimeout int

	timer idleTimer

	registry       *registry.Registry
	eng            engine.Engine
	fallback       engine.Prober
	defaultVariant string
	globalSteps    int
	globalGuidance float64
	cacheDir       string

	publisher EventPublisher
	log       zerolog.Logger
	seeds     func() int64
	now       func() time.Time
	// idleUnit scales the idle timeout; tests shrink it.
	idleUnit  time.Duration
	startTime time.Time

	loads       atomic.Uint64
	unloads     atomic.Uint64
	evictions   atomic.Uint64
	generations atomic.Uint64
}

// Variants returns the configured presets.
func (m *Manager) Variants() []types.Variant { return m.registry.List() }

// DefaultVariant returns the variant used when a request names none.
func (m *Manager) DefaultVariant() string { return m.defaultVariant }

// EngineName reports which engine backs the manager.
func (m *Manager) EngineName() string { return m.eng.Name() }

// IdleTimeout returns the current idle timeout in seconds.
func (m *Manager) IdleTimeout() int {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.idleTimeout
}

// Loaded reports whether a pipeline is resident.
func (m *Manager) Loaded() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.h.state == StateLoaded
}
