package manager

import (
	"errors"
	"fmt"

	"fluxd/internal/engine"
)

// invalidParameterError reports a malformed request. It is raised before any
// state is touched.
type invalidParameterError struct {
	field string
	msg   string
}

func (e invalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.field, e.msg)
}

// IsInvalidParameter reports whether err is a request validation failure.
func IsInvalidParameter(err error) bool {
	var e invalidParameterError
	return errors.As(err, &e)
}

// invalidConfigurationError reports a rejected configuration change.
type invalidConfigurationError struct{ msg string }

func (e invalidConfigurationError) Error() string { return "invalid configuration: " + e.msg }

// IsInvalidConfiguration reports whether err is a rejected configuration update.
func IsInvalidConfiguration(err error) bool {
	var e invalidConfigurationError
	return errors.As(err, &e)
}

// resourceExhaustedError signals the engine ran out of accelerator memory.
type resourceExhaustedError struct {
	phase   string
	variant string
	params  *engine.Params
	err     error
}

func (e resourceExhaustedError) Error() string {
	if e.params != nil {
		return fmt.Sprintf("out of accelerator memory during %s of %s at %dx%d, %d steps: %v",
			e.phase, e.variant, e.params.Width, e.params.Height, e.params.Steps, e.err)
	}
	return fmt.Sprintf("out of accelerator memory during %s of %s: %v", e.phase, e.variant, e.err)
}

func (e resourceExhaustedError) Unwrap() error { return e.err }

// Suggestion proposes a cheaper retry.
func (e resourceExhaustedError) Suggestion() string {
	if e.params == nil {
		return "free accelerator memory (close other GPU programs) or choose a smaller variant"
	}
	w, h := shrink(e.params.Width), shrink(e.params.Height)
	return fmt.Sprintf("try a lower resolution, e.g. width %d height %d", w, h)
}

// SmallerSize proposes retry dimensions after a generation ran out of
// memory. ok is false when err carries no attempted size.
func SmallerSize(err error) (width, height int, ok bool) {
	var e resourceExhaustedError
	if !errors.As(err, &e) || e.params == nil {
		return 0, 0, false
	}
	return shrink(e.params.Width), shrink(e.params.Height), true
}

// IsResourceExhausted reports whether err is an out-of-memory condition.
func IsResourceExhausted(err error) bool {
	var e resourceExhaustedError
	return errors.As(err, &e)
}

// engineFailureError wraps any other engine failure.
type engineFailureError struct {
	phase   string
	variant string
	params  *engine.Params
	err     error
}

func (e engineFailureError) Error() string {
	if e.params != nil {
		return fmt.Sprintf("engine failure during %s of %s (%dx%d, %d steps, guidance %.2f, seed %d): %v",
			e.phase, e.variant, e.params.Width, e.params.Height, e.params.Steps, e.params.Guidance, e.params.Seed, e.err)
	}
	return fmt.Sprintf("engine failure during %s of %s: %v", e.phase, e.variant, e.err)
}

func (e engineFailureError) Unwrap() error { return e.err }

// IsEngineFailure reports whether err is a non-memory engine failure.
func IsEngineFailure(err error) bool {
	var e engineFailureError
	return errors.As(err, &e)
}

// Suggestion returns a retry hint for err, or "".
func Suggestion(err error) string {
	var e resourceExhaustedError
	if errors.As(err, &e) {
		return e.Suggestion()
	}
	return ""
}

// AttemptedParams returns the resolved parameters a failed generation used.
func AttemptedParams(err error) (engine.Params, bool) {
	var re resourceExhaustedError
	if errors.As(err, &re) && re.params != nil {
		return *re.params, true
	}
	var ef engineFailureError
	if errors.As(err, &ef) && ef.params != nil {
		return *ef.params, true
	}
	return engine.Params{}, false
}

// classify turns an engine error into ResourceExhausted or EngineFailure.
func classify(phase, variant string, params *engine.Params, err error) error {
	if errors.Is(err, engine.ErrOutOfMemory) {
		return resourceExhaustedError{phase: phase, variant: variant, params: params, err: err}
	}
	return engineFailureError{phase: phase, variant: variant, params: params, err: err}
}

// shrink scales n by 3/4 down to a multiple of 8, never below the minimum.
func shrink(n int) int {
	s := n * 3 / 4
	s -= s % 8
	if s < minDimension {
		s = minDimension
	}
	return s
}
