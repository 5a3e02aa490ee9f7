package manager

import (
	"context"

	"fluxd/internal/engine"
	"fluxd/pkg/types"
)

// ensureVariant makes v the resident pipeline. Same variant loaded: no-op.
// Different variant: unload, then load. Must hold the exclusive section.
func (m *Manager) ensureVariant(ctx context.Context, v types.Variant) (engine.Pipeline, error) {
	m.stateMu.RLock()
	state, cur, pipe := m.h.state, m.h.variant.Name, m.h.pipeline
	m.stateMu.RUnlock()

	if state == StateLoaded && cur == v.Name {
		return pipe, nil
	}
	if state == StateLoaded {
		m.log.Info().Str("event", "switch").Str("from", cur).Str("to", v.Name).Msg("switching variant")
		if err := m.unloadLocked("switch"); err != nil {
			return nil, err
		}
	}
	return m.load(ctx, v)
}

// load moves Unloaded -> Loading -> Loaded. A failed load returns the handle
// to Unloaded.
func (m *Manager) load(ctx context.Context, v types.Variant) (engine.Pipeline, error) {
	m.stateMu.Lock()
	if err := m.h.moveTo(StateLoading); err != nil {
		m.stateMu.Unlock()
		return nil, engineFailureError{phase: "load", variant: v.Name, err: err}
	}
	m.h.variant = v
	m.stateMu.Unlock()

	m.publisher.Publish(Event{Name: "load_start", Variant: v.Name, Fields: map[string]any{"model_id": v.ModelID}})
	m.log.Info().Str("event", "load_start").Str("variant", v.Name).Str("model_id", v.ModelID).Msg("loading pipeline")
	start := m.now()
	pipe, err := m.eng.Load(ctx, engine.LoadSpec{Variant: v.Name, ModelID: v.ModelID, CacheDir: m.cacheDir})
	dur := m.now().Sub(start)

	m.stateMu.Lock()
	if err != nil {
		_ = m.h.moveTo(StateUnloaded)
		m.stateMu.Unlock()
		m.publisher.Publish(Event{Name: "load_error", Variant: v.Name, Fields: map[string]any{"error": err.Error()}})
		m.log.Error().Str("event", "load_error").Str("variant", v.Name).Dur("dur", dur).Err(err).Msg("load failed")
		return nil, classify("load", v.Name, nil, err)
	}
	_ = m.h.moveTo(StateLoaded)
	m.h.pipeline = pipe
	m.h.loadedAt = m.now()
	m.stateMu.Unlock()

	m.loads.Add(1)
	m.publisher.Publish(Event{Name: "load_done", Variant: v.Name, Fields: map[string]any{"duration_ms": dur.Milliseconds()}})
	m.log.Info().Str("event", "load_done").Str("variant", v.Name).Dur("dur", dur).Msg("pipeline loaded")
	return pipe, nil
}
