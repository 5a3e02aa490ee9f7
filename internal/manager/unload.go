package manager

import (
	"context"
)

// Unload releases the resident pipeline, if any, and cancels any pending
// eviction. Calling it while unloaded is a no-op. A pipeline that fails to
// close is still forgotten; the error is reported as an engine failure.
func (m *Manager) Unload(ctx context.Context) error {
	release, err := m.acquire(ctx)
	defer release()
	if err != nil {
		return err
	}
	return m.unloadLocked("manual")
}

// Close unloads on shutdown.
func (m *Manager) Close(ctx context.Context) error {
	return m.Unload(ctx)
}

// unloadLocked is the one unload routine. Must hold the exclusive section.
func (m *Manager) unloadLocked(reason string) error {
	m.timer.cancel()

	m.stateMu.RLock()
	state, v, pipe := m.h.state, m.h.variant, m.h.pipeline
	m.stateMu.RUnlock()
	if state != StateLoaded {
		return nil
	}

	closeErr := pipe.Close()

	m.stateMu.Lock()
	_ = m.h.moveTo(StateUnloaded)
	m.stateMu.Unlock()

	m.unloads.Add(1)
	if reason == "idle" {
		m.evictions.Add(1)
	}
	fields := map[string]any{"reason": reason}
	if closeErr != nil {
		fields["error"] = closeErr.Error()
	}
	m.publisher.Publish(Event{Name: "unload_done", Variant: v.Name, Fields: fields})
	if closeErr != nil {
		m.log.Error().Str("event", "unload_error").Str("variant", v.Name).Str("reason", reason).Err(closeErr).Msg("pipeline close failed; handle cleared")
		return engineFailureError{phase: "unload", variant: v.Name, err: closeErr}
	}
	m.log.Info().Str("event", "unload_done").Str("variant", v.Name).Str("reason", reason).Msg("pipeline unloaded")
	return nil
}

// onIdle runs on the timer goroutine. It queues for the exclusive section
// like any caller and unloads only if its arm is still the current one.
func (m *Manager) onIdle(tok uint64) {
	release, _ := m.acquire(context.Background())
	defer release()
	if !m.timer.current(tok) {
		m.publisher.Publish(Event{Name: "evict_skip", Fields: map[string]any{"reason": "rearmed"}})
		return
	}
	m.stateMu.RLock()
	v := m.h.variant.Name
	m.stateMu.RUnlock()
	m.publisher.Publish(Event{Name: "evict_idle", Variant: v})
	if err := m.unloadLocked("idle"); err != nil {
		m.log.Error().Str("event", "evict_error").Err(err).Msg("idle eviction failed")
	}
}

// SetIdleTimeout changes the idle timeout. A pending eviction keeps its
// original deadline; the new value applies from the next generation.
func (m *Manager) SetIdleTimeout(seconds int) error {
	if err := checkIdleTimeout(seconds); err != nil {
		return err
	}
	m.stateMu.Lock()
	old := m.idleTimeout
	m.idleTimeout = seconds
	m.stateMu.Unlock()
	m.publisher.Publish(Event{Name: "timeout_set", Fields: map[string]any{"old": old, "new": seconds}})
	m.log.Info().Str("event", "timeout_set").Int("old", old).Int("new", seconds).Msg("idle timeout updated")
	return nil
}
