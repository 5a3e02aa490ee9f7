package manager

import (
	"context"
	"time"
)

// SanityReport describes whether the configured engine can be used.
type SanityReport struct {
	Engine    string `json:"engine"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// checker is implemented by engines that can verify their dependencies
// without loading a model.
type checker interface {
	Check(ctx context.Context) error
}

// SanityCheck validates that the engine's external dependencies are
// available. It does not mutate state and is safe to call at any time.
func (m *Manager) SanityCheck(ctx context.Context) SanityReport {
	r := SanityReport{Engine: m.eng.Name(), Reachable: true}
	c, ok := m.eng.(checker)
	if !ok {
		return r
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Check(ctx); err != nil {
		r.Reachable = false
		r.Error = err.Error()
	}
	return r
}
