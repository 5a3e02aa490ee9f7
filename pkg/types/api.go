package types

import "encoding/json"

// GenerateImageArgs are the arguments of the generate_image tool.
type GenerateImageArgs struct {
	// Required prompt text.
	// example: a lighthouse at dusk, volumetric fog
	Prompt string `json:"prompt" example:"a lighthouse at dusk, volumetric fog"`
	// Optional variant preset or model id. Empty selects the server default.
	// example: flux2-dev
	Model string `json:"model,omitempty" example:"flux2-dev"`
	// Optional denoising steps (1-100).
	// example: 28
	Steps *int `json:"steps,omitempty" example:"28"`
	// Optional guidance scale.
	// example: 3.5
	Guidance *float64 `json:"guidance_scale,omitempty" example:"3.5"`
	// Width in pixels, multiple of 8 in [256, 2048]. 0 selects 1024.
	// example: 1024
	Width int `json:"width,omitempty" example:"1024"`
	// Height in pixels, multiple of 8 in [256, 2048]. 0 selects 1024.
	// example: 1024
	Height int `json:"height,omitempty" example:"1024"`
	// Optional seed for reproducible output.
	// example: 42
	Seed *int64 `json:"seed,omitempty" example:"42"`
}

// SetTimeoutArgs are the arguments of the set_timeout tool.
type SetTimeoutArgs struct {
	// Idle seconds before the model is unloaded. 0 disables eviction.
	// example: 300
	TimeoutSeconds int `json:"timeout_seconds" example:"300"`
}

// ListImagesArgs are the arguments of the list_images tool.
type ListImagesArgs struct {
	// example: 20
	Limit int `json:"limit,omitempty" example:"20"`
}

// GetImageArgs are the arguments of the get_image tool.
type GetImageArgs struct {
	ID string `json:"id"`
}

// Utilization reports accelerator memory in gigabytes.
type Utilization struct {
	// example: NVIDIA GeForce RTX 4090
	Device string `json:"device,omitempty" example:"NVIDIA GeForce RTX 4090"`
	// example: 21.5
	AllocatedGB float64 `json:"allocated_gb" example:"21.5"`
	// example: 22.0
	ReservedGB float64 `json:"reserved_gb" example:"22.0"`
	// example: 24.0
	TotalGB float64 `json:"total_gb,omitempty" example:"24.0"`
}

// StatusResponse is returned by GET /v1/status and the get_status tool.
type StatusResponse struct {
	// Whether a model is resident.
	// example: true
	ModelLoaded bool `json:"model_loaded" example:"true"`
	// Lifecycle state: unloaded, loading or loaded.
	// example: loaded
	State string `json:"state" example:"loaded"`
	// Loaded variant name, empty when unloaded.
	// example: flux2-dev
	CurrentModel string `json:"current_model,omitempty" example:"flux2-dev"`
	// Engine model id of the loaded variant.
	ModelID string `json:"model_id,omitempty" example:"black-forest-labs/FLUX.2-dev"`
	// Seconds until automatic unload; absent when disabled or unloaded.
	// example: 287
	TimeUntilUnload *int64 `json:"time_until_unload,omitempty" example:"287"`
	// Configured idle timeout in seconds.
	// example: 300
	TimeoutSeconds int `json:"timeout_seconds" example:"300"`
	// Accelerator memory, when the engine can report it.
	VRAMUsage *Utilization `json:"vram_usage,omitempty"`
	// Last access time (RFC3339), empty when unloaded.
	LastAccess string `json:"last_access,omitempty" example:"2025-01-01T12:00:00Z"`
	// Load time (RFC3339), empty when unloaded.
	LoadedAt string `json:"loaded_at,omitempty" example:"2025-01-01T11:58:00Z"`
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// example: 2
	UnloadsTotal uint64 `json:"unloads_total" example:"2"`
	// example: 1
	EvictionsTotal uint64 `json:"evictions_total" example:"1"`
	// example: 12
	GenerationsTotal uint64 `json:"generations_total" example:"12"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Optional hint for retrying with different parameters.
	Suggestion string `json:"suggestion,omitempty"`
}

// ToolDescriptor declares a callable tool and its JSON schema.
type ToolDescriptor struct {
	Name        string          `json:"name" example:"generate_image"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema" swaggertype:"object"`
}

// ToolsResponse wraps GET /v1/tools.
type ToolsResponse struct {
	Tools []ToolDescriptor `json:"tools"`
}

// Content is one block of a tool result.
type Content struct {
	// text or image
	Type     string `json:"type" example:"text"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ToolResult is returned by POST /v1/tools/{name}.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// TextResult builds a single-text tool result.
func TextResult(text string) ToolResult {
	return ToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// ErrorResult builds an in-band tool error.
func ErrorResult(text string) ToolResult {
	return ToolResult{Content: []Content{{Type: "text", Text: text}}, IsError: true}
}
