package manager

import (
	"context"
	"time"

	"fluxd/internal/engine"
	"fluxd/pkg/types"
)

// Status returns a consistent snapshot without entering the exclusive
// section. Utilization is queried after the snapshot, outside any lock.
func (m *Manager) Status(ctx context.Context) StatusSnapshot {
	m.stateMu.RLock()
	s := StatusSnapshot{
		State:              m.h.state,
		Loaded:             m.h.state == StateLoaded,
		IdleTimeoutSeconds: m.idleTimeout,
	}
	if s.Loaded {
		s.Variant = m.h.variant.Name
		s.ModelID = m.h.variant.ModelID
		s.LoadedAt = m.h.loadedAt
		s.LastAccess = m.h.lastAccessedAt
		if m.idleTimeout > 0 && !s.LastAccess.IsZero() {
			rem := time.Duration(m.idleTimeout)*m.idleUnit - m.now().Sub(s.LastAccess)
			if rem < 0 {
				rem = 0
			}
			s.EvictionIn = &rem
		}
	}
	m.stateMu.RUnlock()

	s.LoadsTotal = m.loads.Load()
	s.UnloadsTotal = m.unloads.Load()
	s.EvictionsTotal = m.evictions.Load()
	s.GenerationsTotal = m.generations.Load()
	s.Uptime = time.Since(m.startTime)
	s.Utilization = m.utilization(ctx)
	return s
}

// utilization asks the engine, then the fallback prober. Failures yield nil.
func (m *Manager) utilization(ctx context.Context) *engine.Utilization {
	u, err := m.eng.Utilization(ctx)
	if err == nil {
		return &u
	}
	m.log.Debug().Err(err).Msg("engine utilization unavailable")
	if m.fallback == nil {
		return nil
	}
	u, err = m.fallback.Utilization(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("fallback utilization unavailable")
		return nil
	}
	return &u
}

// StatusResponse renders the snapshot for the tool-call API.
func (s StatusSnapshot) StatusResponse() types.StatusResponse {
	resp := types.StatusResponse{
		ModelLoaded:      s.Loaded,
		State:            string(s.State),
		CurrentModel:     s.Variant,
		ModelID:          s.ModelID,
		TimeoutSeconds:   s.IdleTimeoutSeconds,
		LoadsTotal:       s.LoadsTotal,
		UnloadsTotal:     s.UnloadsTotal,
		EvictionsTotal:   s.EvictionsTotal,
		GenerationsTotal: s.GenerationsTotal,
		UptimeSeconds:    int64(s.Uptime.Seconds()),
	}
	if s.EvictionIn != nil {
		secs := int64(s.EvictionIn.Round(time.Second).Seconds())
		resp.TimeUntilUnload = &secs
	}
	if !s.LastAccess.IsZero() {
		resp.LastAccess = s.LastAccess.Format(time.RFC3339)
	}
	if !s.LoadedAt.IsZero() {
		resp.LoadedAt = s.LoadedAt.Format(time.RFC3339)
	}
	if u := s.Utilization; u != nil {
		resp.VRAMUsage = &types.Utilization{
			Device:      u.Device,
			AllocatedGB: round2(engine.GB(u.AllocatedBytes)),
			ReservedGB:  round2(engine.GB(u.ReservedBytes)),
			TotalGB:     round2(engine.GB(u.TotalBytes)),
		}
	}
	return resp
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
