package manager

import (
	"context"
	"time"
)

// Generate synthesizes one image. Validation happens before any state is
// touched. The call then waits for the exclusive section, loads or switches
// the variant as needed, runs the engine, records the access time and
// rearms the idle timer. Once inside the section the work is not cancelled
// by ctx: the engine call runs to completion.
func (m *Manager) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	v, err := m.resolveVariant(req.Variant)
	if err != nil {
		return nil, err
	}
	params, err := m.resolveParams(req, v)
	if err != nil {
		return nil, err
	}

	release, err := m.acquire(ctx)
	defer release()
	if err != nil {
		return nil, err
	}
	work := context.WithoutCancel(ctx)

	pipe, err := m.ensureVariant(work, v)
	if err != nil {
		m.publisher.Publish(Event{Name: "generate_error", Variant: v.Name, Fields: map[string]any{"phase": "load", "error": err.Error()}})
		return nil, err
	}

	res, err := m.synthesize(work, pipe, v, params)
	m.touch()
	if err != nil {
		m.publisher.Publish(Event{Name: "generate_error", Variant: v.Name, Fields: map[string]any{"phase": "generation", "error": err.Error()}})
		m.log.Warn().Str("event", "generate_error").Str("variant", v.Name).Int64("seed", params.Seed).Err(err).Msg("generation failed")
		return nil, err
	}
	m.generations.Add(1)
	m.publisher.Publish(Event{Name: "generate_done", Variant: v.Name, Fields: map[string]any{
		"seed":        res.Seed,
		"steps":       res.Steps,
		"duration_ms": res.Elapsed.Milliseconds(),
	}})
	m.log.Info().Str("event", "generate_done").Str("variant", v.Name).Int64("seed", res.Seed).
		Int("steps", res.Steps).Dur("dur", res.Elapsed).Msg("image generated")
	return res, nil
}

// touch records an access and rearms the idle timer with the current
// timeout. lastAccessedAt never moves backwards.
func (m *Manager) touch() {
	m.stateMu.Lock()
	if m.h.state != StateLoaded {
		m.stateMu.Unlock()
		return
	}
	now := m.now()
	if now.After(m.h.lastAccessedAt) {
		m.h.lastAccessedAt = now
	}
	after := time.Duration(m.idleTimeout) * m.idleUnit
	m.stateMu.Unlock()
	m.timer.arm(after, m.onIdle)
}
