// Package registry resolves variant names to engine model ids and their
// default generation settings.
package registry

import (
	"fmt"
	"strings"

	"fluxd/pkg/types"
)

// Builtin returns the presets shipped with fluxd.
func Builtin() []types.Variant {
	return []types.Variant{
		{Name: "flux1-dev", ModelID: "black-forest-labs/FLUX.1-dev", DefaultSteps: 28, DefaultGuidance: 3.5, Description: "FLUX.1 [dev], fast 28-step default"},
		{Name: "flux2-dev", ModelID: "black-forest-labs/FLUX.2-dev", DefaultSteps: 50, DefaultGuidance: 4.0, Description: "FLUX.2 [dev], higher quality"},
	}
}

// Registry is an immutable set of variants.
type Registry struct {
	byName  map[string]types.Variant
	byModel map[string]types.Variant
	order   []string
}

// New builds a registry from variants. Later entries override earlier ones
// with the same name.
func New(variants []types.Variant) (*Registry, error) {
	r := &Registry{byName: map[string]types.Variant{}, byModel: map[string]types.Variant{}}
	for _, v := range variants {
		v.Name = strings.TrimSpace(v.Name)
		v.ModelID = strings.TrimSpace(v.ModelID)
		if v.Name == "" {
			return nil, fmt.Errorf("variant with empty name")
		}
		if v.ModelID == "" {
			return nil, fmt.Errorf("variant %q: empty model_id", v.Name)
		}
		if v.DefaultSteps < 0 || v.DefaultGuidance < 0 {
			return nil, fmt.Errorf("variant %q: negative defaults", v.Name)
		}
		if _, ok := r.byName[v.Name]; !ok {
			r.order = append(r.order, v.Name)
		}
		r.byName[v.Name] = v
		r.byModel[v.ModelID] = v
	}
	return r, nil
}

// Resolve maps a preset name or a model id to a variant. Unknown non-empty
// identifiers pass through as a model id with no per-variant defaults.
func (r *Registry) Resolve(id string) (types.Variant, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Variant{}, false
	}
	if v, ok := r.byName[id]; ok {
		return v, true
	}
	if v, ok := r.byModel[id]; ok {
		return v, true
	}
	return types.Variant{Name: id, ModelID: id}, true
}

// Known reports whether id names a configured preset or model id.
func (r *Registry) Known(id string) bool {
	_, a := r.byName[id]
	_, b := r.byModel[id]
	return a || b
}

// List returns configured variants in insertion order.
func (r *Registry) List() []types.Variant {
	out := make([]types.Variant, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}
