package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"fluxd/internal/manager"
	"fluxd/pkg/types"
)

const (
	toolGenerateImage = "generate_image"
	toolUnloadModel   = "unload_model"
	toolGetStatus     = "get_status"
	toolSetTimeout    = "set_timeout"
	toolListModels    = "list_models"
	toolListImages    = "list_images"
	toolGetImage      = "get_image"
)

var toolDescriptors = map[string]types.ToolDescriptor{
	toolGenerateImage: {
		Name: toolGenerateImage,
		Description: "Generate an image from a text prompt. Loads the model on first use and " +
			"saves the image, a JSON sidecar and a 512px thumbnail to the output directory.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"prompt": {"type": "string", "description": "Text description of the image to generate"},
				"model": {"type": "string", "description": "Variant name or model id (default: server default)"},
				"steps": {"type": "integer", "minimum": 1, "maximum": 100, "description": "Inference steps (default: variant default)"},
				"guidance_scale": {"type": "number", "exclusiveMinimum": 0, "maximum": 30, "description": "Guidance scale (default: variant default)"},
				"width": {"type": "integer", "minimum": 256, "maximum": 2048, "multipleOf": 8, "default": 1024},
				"height": {"type": "integer", "minimum": 256, "maximum": 2048, "multipleOf": 8, "default": 1024},
				"seed": {"type": "integer", "minimum": 0, "description": "Random seed for reproducibility (random if omitted)"}
			},
			"required": ["prompt"]
		}`),
	},
	toolUnloadModel: {
		Name: toolUnloadModel,
		Description: "Unload the model from accelerator memory now. It is loaded again on " +
			"the next generation request.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	},
	toolGetStatus: {
		Name:        toolGetStatus,
		Description: "Report whether the model is loaded, time until automatic unload and memory usage.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	},
	toolSetTimeout: {
		Name: toolSetTimeout,
		Description: "Set the idle timeout after which the model is unloaded. " +
			"0 disables automatic unloading.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"timeout_seconds": {"type": "integer", "minimum": 0, "description": "Timeout in seconds (0 to disable auto-unload)"}
			},
			"required": ["timeout_seconds"]
		}`),
	},
	toolListModels: {
		Name:        toolListModels,
		Description: "List the registered model variants and their defaults.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	},
	toolListImages: {
		Name:        toolListImages,
		Description: "List recently generated images, newest first.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "integer", "minimum": 1, "default": 20}
			}
		}`),
	},
	toolGetImage: {
		Name:        toolGetImage,
		Description: "Show one generated image by id, with its settings and thumbnail.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"id": {"type": "string"}
			},
			"required": ["id"]
		}`),
	},
}

type toolFunc func(ctx context.Context, raw json.RawMessage) (types.ToolResult, error)

type toolSet struct {
	svc      Service
	gal      Gallery
	handlers map[string]toolFunc
}

func newToolSet(svc Service, gal Gallery) *toolSet {
	ts := &toolSet{svc: svc, gal: gal}
	ts.handlers = map[string]toolFunc{
		toolGenerateImage: ts.generateImage,
		toolUnloadModel:   ts.unloadModel,
		toolGetStatus:     ts.getStatus,
		toolSetTimeout:    ts.setTimeout,
		toolListModels:    ts.listModels,
		toolListImages:    ts.listImages,
		toolGetImage:      ts.getImage,
	}
	return ts
}

func (ts *toolSet) has(name string) bool {
	_, ok := ts.handlers[name]
	return ok
}

// descriptors returns the tools sorted by name.
func (ts *toolSet) descriptors() []types.ToolDescriptor {
	out := make([]types.ToolDescriptor, 0, len(toolDescriptors))
	for _, d := range toolDescriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (ts *toolSet) call(ctx context.Context, name string, raw json.RawMessage) (types.ToolResult, error) {
	h, ok := ts.handlers[name]
	if !ok {
		return types.ToolResult{}, unknownToolError{name: name}
	}
	return h(ctx, raw)
}

// decodeArgs unmarshals tool arguments strictly. An empty body is an empty
// object.
func decodeArgs(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequestError{msg: "invalid arguments: " + err.Error()}
	}
	return nil
}

func (ts *toolSet) generateImage(ctx context.Context, raw json.RawMessage) (types.ToolResult, error) {
	var args types.GenerateImageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return types.ToolResult{}, err
	}
	res, err := ts.svc.Generate(ctx, manager.GenerationRequest{
		Prompt:   args.Prompt,
		Variant:  args.Model,
		Steps:    args.Steps,
		Guidance: args.Guidance,
		Width:    args.Width,
		Height:   args.Height,
		Seed:     args.Seed,
	})
	if err != nil {
		return types.ToolResult{}, err
	}
	entry, err := ts.gal.Save(ctx, res, "")
	if err != nil {
		return types.ToolResult{}, fmt.Errorf("save image: %w", err)
	}
	out := types.TextResult(formatGenerated(res, entry))
	if len(entry.Files.Thumbnail) > 0 {
		out.Content = append(out.Content, types.Content{
			Type:     "image",
			Data:     entry.Files.ThumbnailBase64(),
			MimeType: "image/png",
		})
	}
	return out, nil
}

func (ts *toolSet) unloadModel(ctx context.Context, raw json.RawMessage) (types.ToolResult, error) {
	if err := ts.svc.Unload(ctx); err != nil {
		return types.ToolResult{}, err
	}
	return types.TextResult("Model unloaded. Accelerator memory freed."), nil
}

func (ts *toolSet) getStatus(ctx context.Context, raw json.RawMessage) (types.ToolResult, error) {
	st := ts.svc.Status(ctx).StatusResponse()
	return types.TextResult(formatStatus(st)), nil
}

func (ts *toolSet) setTimeout(ctx context.Context, raw json.RawMessage) (types.ToolResult, error) {
	var args struct {
		TimeoutSeconds *int `json:"timeout_seconds"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return types.ToolResult{}, err
	}
	if args.TimeoutSeconds == nil {
		return types.ToolResult{}, badRequestError{msg: "timeout_seconds is required"}
	}
	if err := ts.svc.SetIdleTimeout(*args.TimeoutSeconds); err != nil {
		return types.ToolResult{}, err
	}
	if *args.TimeoutSeconds == 0 {
		return types.TextResult("Auto-unload disabled. The model stays loaded until unloaded manually."), nil
	}
	return types.TextResult(fmt.Sprintf("Auto-unload timeout set to %d seconds.", *args.TimeoutSeconds)), nil
}

func (ts *toolSet) listModels(ctx context.Context, raw json.RawMessage) (types.ToolResult, error) {
	return types.TextResult(formatVariants(ts.svc.Variants(), ts.svc.DefaultVariant())), nil
}

func (ts *toolSet) listImages(ctx context.Context, raw json.RawMessage) (types.ToolResult, error) {
	var args types.ListImagesArgs
	if err := decodeArgs(raw, &args); err != nil {
		return types.ToolResult{}, err
	}
	if args.Limit < 0 {
		return types.ToolResult{}, badRequestError{msg: "limit must be positive"}
	}
	recs, err := ts.gal.List(ctx, args.Limit)
	if err != nil {
		return types.ToolResult{}, err
	}
	return types.TextResult(formatRecords(recs)), nil
}

func (ts *toolSet) getImage(ctx context.Context, raw json.RawMessage) (types.ToolResult, error) {
	var args types.GetImageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return types.ToolResult{}, err
	}
	if args.ID == "" {
		return types.ToolResult{}, badRequestError{msg: "id is required"}
	}
	rec, err := ts.gal.Get(ctx, args.ID)
	if err != nil {
		return types.ToolResult{}, err
	}
	out := types.TextResult(formatRecord(rec))
	if thumb, err := ts.gal.Preview(rec); err == nil {
		out.Content = append(out.Content, types.Content{
			Type:     "image",
			Data:     base64.StdEncoding.EncodeToString(thumb),
			MimeType: "image/png",
		})
	} else {
		zlog.Debug().Str("id", rec.ID).Err(err).Msg("no preview")
	}
	return out, nil
}
