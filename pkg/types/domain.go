package types

// Variant is a named model preset the engine can load.
type Variant struct {
	// Short preset name.
	// example: flux2-dev
	Name string `json:"name" yaml:"name" toml:"name" example:"flux2-dev"`
	// Model identifier passed to the inference engine.
	// example: black-forest-labs/FLUX.2-dev
	ModelID string `json:"model_id" yaml:"model_id" toml:"model_id" example:"black-forest-labs/FLUX.2-dev"`
	// Denoising steps used when a request does not set them.
	// example: 50
	DefaultSteps int `json:"default_steps" yaml:"default_steps" toml:"default_steps" example:"50"`
	// Guidance scale used when a request does not set it.
	// example: 4.0
	DefaultGuidance float64 `json:"default_guidance" yaml:"default_guidance" toml:"default_guidance" example:"4.0"`
	// Optional human description.
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// ImageRecord describes a persisted generation.
type ImageRecord struct {
	ID             string  `json:"id" example:"5f0c7a52-3b1e-4a57-9d7e-1c2b3a4d5e6f"`
	Prompt         string  `json:"prompt" example:"a lighthouse at dusk"`
	Variant        string  `json:"model" example:"flux2-dev"`
	Seed           int64   `json:"seed" example:"42"`
	Steps          int     `json:"steps" example:"50"`
	Guidance       float64 `json:"guidance_scale" example:"4.0"`
	Width          int     `json:"width" example:"1024"`
	Height         int     `json:"height" example:"1024"`
	DurationMillis int64   `json:"duration_ms" example:"41250"`
	ImagePath      string  `json:"image_path"`
	ThumbnailPath  string  `json:"thumbnail_path,omitempty"`
	SidecarPath    string  `json:"sidecar_path,omitempty"`
	CreatedAt      string  `json:"created_at" example:"2025-01-01T12:00:00Z"`
}
