package artifact

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fluxd/internal/engine"
	"fluxd/internal/manager"
)

func testResult(t *testing.T, w, h int) *manager.GenerationResult {
	t.Helper()
	img, err := engine.Render(engine.Params{Prompt: "a red fox", Seed: 42, Width: w, Height: h})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return &manager.GenerationResult{
		ID:        "gen-1",
		Image:     img,
		Prompt:    "a red fox",
		Seed:      42,
		Steps:     28,
		Guidance:  3.5,
		Width:     w,
		Height:    h,
		Variant:   "flux1-dev",
		ModelID:   "black-forest-labs/FLUX.1-dev",
		Elapsed:   12341 * time.Millisecond,
		Timestamp: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
	}
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC), 42)
	if got != "20250304_050607_42.png" {
		t.Fatalf("FileName=%s", got)
	}
}

func TestWriter_SaveWritesAllArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(dir)
	res := testResult(t, 1024, 768)
	saved, err := w.Save(res, "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ImagePath != filepath.Join(dir, "20250304_050607_42.png") {
		t.Fatalf("image path=%s", saved.ImagePath)
	}
	if saved.SidecarPath != filepath.Join(dir, "20250304_050607_42.json") || saved.ThumbnailPath != filepath.Join(dir, "20250304_050607_42_thumb.png") {
		t.Fatalf("paths=%+v", saved)
	}

	raw, err := os.ReadFile(saved.ImagePath)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
		t.Fatalf("image no longer decodes: %v", err)
	}
	entries, err := ReadText(raw)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	text := map[string]string{}
	for _, e := range entries {
		text[e.Key] = e.Value
	}
	if text["prompt"] != "a red fox" || text["seed"] != "42" || text["steps"] != "28" || text["guidance_scale"] != "3.5" {
		t.Fatalf("text chunks=%v", text)
	}
	if text["model"] != "black-forest-labs/FLUX.1-dev" || text["timestamp"] != "2025-03-04T05:06:07Z" {
		t.Fatalf("text chunks=%v", text)
	}
	var params Metadata
	if err := json.Unmarshal([]byte(text["parameters"]), &params); err != nil {
		t.Fatalf("parameters chunk: %v", err)
	}
	if params.Width != 1024 || params.Height != 768 || params.GenerationTimeSeconds != 12.34 {
		t.Fatalf("parameters=%+v", params)
	}

	side, err := os.ReadFile(saved.SidecarPath)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var meta Metadata
	if err := json.Unmarshal(side, &meta); err != nil {
		t.Fatalf("sidecar json: %v", err)
	}
	if meta != params {
		t.Fatalf("sidecar=%+v parameters=%+v", meta, params)
	}

	thumb, err := png.DecodeConfig(bytes.NewReader(saved.Thumbnail))
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if thumb.Width != 512 || thumb.Height != 384 {
		t.Fatalf("thumbnail size=%dx%d", thumb.Width, thumb.Height)
	}
	if saved.ThumbnailBase64() == "" {
		t.Fatalf("empty base64")
	}
}

func TestWriter_SameSecondSameSeedKeepsBoth(t *testing.T) {
	w := NewWriter(t.TempDir())
	res := testResult(t, 256, 256)
	a, err := w.Save(res, "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := w.Save(res, "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a.ImagePath == b.ImagePath {
		t.Fatalf("second save overwrote %s", a.ImagePath)
	}
}

func TestWriter_CustomPath(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(filepath.Join(dir, "unused"))
	saved, err := w.Save(testResult(t, 256, 256), filepath.Join(dir, "sub", "fox"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ImagePath != filepath.Join(dir, "sub", "fox.png") || saved.SidecarPath != filepath.Join(dir, "sub", "fox.json") {
		t.Fatalf("paths=%+v", saved)
	}
	if _, err := os.Stat(filepath.Join(dir, "unused")); !os.IsNotExist(err) {
		t.Fatalf("default dir created for custom path")
	}
}

func TestEmbedText_NonASCII(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := EmbedText(buf.Bytes(), []TextEntry{{Key: "prompt", Value: "un chat sur la lune, 月"}, {Key: "seed", Value: "7"}})
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	got, err := ReadText(out)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if len(got) != 2 || got[0].Value != "un chat sur la lune, 月" || got[1].Value != "7" {
		t.Fatalf("entries=%+v", got)
	}
	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := EmbedText([]byte("GIF89a"), nil); err == nil {
		t.Fatalf("expected error for non-png")
	}
}

func TestThumbnail_SmallImageUnchanged(t *testing.T) {
	res := testResult(t, 256, 512)
	thumb, err := Thumbnail(res.Image, 512)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 256 || cfg.Height != 512 {
		t.Fatalf("size=%dx%d", cfg.Width, cfg.Height)
	}
	if w, h := fit(768, 2048, 512); w != 192 || h != 512 {
		t.Fatalf("fit=%dx%d", w, h)
	}
}
