package manager

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"fluxd/internal/engine"
	"fluxd/internal/registry"
	"fluxd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultSteps    = 50
	defaultGuidance = 7.5
	defaultSize     = 1024
)

// MaxIdleTimeoutSeconds is the largest idle timeout a time.Duration can hold.
const MaxIdleTimeoutSeconds = math.MaxInt64 / int64(time.Second)

func checkIdleTimeout(seconds int) error {
	if seconds < 0 {
		return invalidConfigurationError{msg: "idle timeout must be >= 0"}
	}
	if int64(seconds) > MaxIdleTimeoutSeconds {
		return invalidConfigurationError{msg: fmt.Sprintf("idle timeout must be <= %d seconds", MaxIdleTimeoutSeconds)}
	}
	return nil
}

// ManagerConfig encapsulates all tunables for Manager construction. Only the
// idle timeout can change after construction.
type ManagerConfig struct {
	Engine engine.Engine
	// Fallback answers utilization queries when the engine cannot.
	Fallback engine.Prober

	Variants       []types.Variant
	DefaultVariant string
	GlobalSteps    int
	GlobalGuidance float64
	CacheDir       string

	// IdleTimeoutSeconds unloads the pipeline after this many idle seconds.
	// 0 disables eviction.
	IdleTimeoutSeconds int

	Logger    *zerolog.Logger
	Publisher EventPublisher
	// SeedSource draws seeds for requests without one. Defaults to a uniform
	// draw in [0, 2^32).
	SeedSource func() int64
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) (*Manager, error) {
	if cfg.Engine == nil {
		return nil, errors.New("manager: engine is required")
	}
	if err := checkIdleTimeout(cfg.IdleTimeoutSeconds); err != nil {
		return nil, err
	}
	variants := cfg.Variants
	if len(variants) == 0 {
		variants = registry.Builtin()
	}
	reg, err := registry.New(variants)
	if err != nil {
		return nil, invalidConfigurationError{msg: err.Error()}
	}
	m := &Manager{
		slot:           make(chan struct{}, 1),
		h:              handle{state: StateUnloaded},
		registry:       reg,
		eng:            cfg.Engine,
		fallback:       cfg.Fallback,
		defaultVariant: cfg.DefaultVariant,
		globalSteps:    cfg.GlobalSteps,
		globalGuidance: cfg.GlobalGuidance,
		cacheDir:       cfg.CacheDir,
		idleTimeout:    cfg.IdleTimeoutSeconds,
		publisher:      cfg.Publisher,
		seeds:          cfg.SeedSource,
		now:            time.Now,
		idleUnit:       time.Second,
		startTime:      time.Now(),
	}
	// Apply defaults if unset
	if m.defaultVariant == "" {
		m.defaultVariant = reg.List()[0].Name
	}
	if m.globalSteps <= 0 {
		m.globalSteps = defaultSteps
	}
	if m.globalGuidance <= 0 {
		m.globalGuidance = defaultGuidance
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.seeds == nil {
		m.seeds = func() int64 { return rand.Int64N(1 << 32) }
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	} else {
		m.log = zerolog.Nop()
	}
	if !reg.Known(m.defaultVariant) {
		m.log.Warn().Str("variant", m.defaultVariant).Msg("default variant is not a configured preset; using it as a raw model id")
	}
	return m, nil
}
