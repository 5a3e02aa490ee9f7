// Package engine defines the boundary to the external text-to-image runtime.
//
// An Engine loads a model variant into accelerator memory and returns a
// Pipeline. A Pipeline turns fully resolved parameters into PNG bytes and
// releases its memory on Close. Callers serialize access; implementations
// are not required to be safe for concurrent Synthesize calls.
package engine

import (
	"bytes"
	"context"
	"errors"
)

// ErrOutOfMemory is returned (possibly wrapped) when the runtime cannot fit a
// model or a generation into accelerator memory.
var ErrOutOfMemory = errors.New("out of accelerator memory")

// ErrUnavailable is returned when the runtime cannot be reached or started.
var ErrUnavailable = errors.New("engine unavailable")

// LoadSpec selects what to load.
type LoadSpec struct {
	Variant  string
	ModelID  string
	CacheDir string
}

// Params is a fully resolved synthesis request. No field is optional here.
type Params struct {
	Prompt   string  `json:"prompt"`
	Steps    int     `json:"steps"`
	Guidance float64 `json:"guidance_scale"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Seed     int64   `json:"seed"`
}

// Image is an encoded PNG.
type Image struct {
	PNG []byte
}

// Utilization reports accelerator memory in bytes.
type Utilization struct {
	Device         string
	AllocatedBytes uint64
	ReservedBytes  uint64
	TotalBytes     uint64
}

// Prober reports accelerator memory.
type Prober interface {
	Utilization(ctx context.Context) (Utilization, error)
}

// Engine loads pipelines.
type Engine interface {
	Prober
	Name() string
	Load(ctx context.Context, spec LoadSpec) (Pipeline, error)
}

// Pipeline is a resident model.
type Pipeline interface {
	Synthesize(ctx context.Context, p Params) (Image, error)
	Close() error
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// IsPNG reports whether b starts with the PNG signature.
func IsPNG(b []byte) bool {
	return bytes.HasPrefix(b, pngMagic)
}

// GB converts bytes to gigabytes.
func GB(n uint64) float64 {
	return float64(n) / (1024 * 1024 * 1024)
}
