package manager

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"fluxd/internal/engine"
	"fluxd/pkg/types"
)

const (
	minDimension = 256
	maxDimension = 2048
	minSteps     = 1
	maxSteps     = 100
	maxGuidance  = 30.0
)

// resolveVariant picks the requested variant or the default.
func (m *Manager) resolveVariant(id string) (types.Variant, error) {
	if strings.TrimSpace(id) == "" {
		id = m.defaultVariant
	}
	v, ok := m.registry.Resolve(id)
	if !ok {
		return types.Variant{}, invalidParameterError{field: "model", msg: "empty variant"}
	}
	return v, nil
}

// resolveParams fills every optional field and validates the result.
// Precedence: request, then variant default, then global default.
func (m *Manager) resolveParams(req GenerationRequest, v types.Variant) (engine.Params, error) {
	p := engine.Params{Prompt: strings.TrimSpace(req.Prompt)}
	if p.Prompt == "" {
		return p, invalidParameterError{field: "prompt", msg: "must not be empty"}
	}

	switch {
	case req.Steps != nil:
		p.Steps = *req.Steps
	case v.DefaultSteps > 0:
		p.Steps = v.DefaultSteps
	default:
		p.Steps = m.globalSteps
	}
	if p.Steps < minSteps || p.Steps > maxSteps {
		return p, invalidParameterError{field: "steps", msg: "must be between 1 and 100"}
	}

	switch {
	case req.Guidance != nil:
		p.Guidance = *req.Guidance
	case v.DefaultGuidance > 0:
		p.Guidance = v.DefaultGuidance
	default:
		p.Guidance = m.globalGuidance
	}
	if !(p.Guidance > 0) || p.Guidance > maxGuidance {
		return p, invalidParameterError{field: "guidance_scale", msg: "must be > 0 and <= 30"}
	}

	p.Width, p.Height = req.Width, req.Height
	if p.Width == 0 {
		p.Width = defaultSize
	}
	if p.Height == 0 {
		p.Height = defaultSize
	}
	if err := validateDimension("width", p.Width); err != nil {
		return p, err
	}
	if err := validateDimension("height", p.Height); err != nil {
		return p, err
	}

	if req.Seed != nil {
		if *req.Seed < 0 {
			return p, invalidParameterError{field: "seed", msg: "must be >= 0"}
		}
		p.Seed = *req.Seed
	} else {
		p.Seed = m.seeds()
	}
	return p, nil
}

// validateDimension requires a multiple of 8 within [256, 2048].
func validateDimension(name string, n int) error {
	if n < minDimension || n > maxDimension {
		return invalidParameterError{field: name, msg: "must be between 256 and 2048"}
	}
	if n%8 != 0 {
		return invalidParameterError{field: name, msg: "must be a multiple of 8"}
	}
	return nil
}

// ValidateDimensions checks width and height the way Generate does. Front
// ends use it to fail fast before loading anything.
func ValidateDimensions(width, height int) error {
	if err := validateDimension("width", width); err != nil {
		return err
	}
	return validateDimension("height", height)
}

// synthesize runs one engine call on a resident pipeline and assembles the
// result from resolved values only.
func (m *Manager) synthesize(ctx context.Context, pipe engine.Pipeline, v types.Variant, p engine.Params) (*GenerationResult, error) {
	start := m.now()
	img, err := pipe.Synthesize(ctx, p)
	elapsed := m.now().Sub(start)
	if err != nil {
		return nil, classify("generation", v.Name, &p, err)
	}
	return &GenerationResult{
		ID:        uuid.NewString(),
		Image:     img.PNG,
		Prompt:    p.Prompt,
		Seed:      p.Seed,
		Steps:     p.Steps,
		Guidance:  p.Guidance,
		Width:     p.Width,
		Height:    p.Height,
		Variant:   v.Name,
		ModelID:   v.ModelID,
		Elapsed:   elapsed,
		Timestamp: m.now(),
	}, nil
}
