// Package artifact persists generated images: the PNG with embedded
// generation parameters, a JSON sidecar and a small preview thumbnail.
package artifact

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"fluxd/internal/common/fsutil"
	"fluxd/internal/manager"
)

// DefaultThumbnailSize bounds both thumbnail edges.
const DefaultThumbnailSize = 512

// Metadata is written to the sidecar and, as JSON, to the "parameters"
// text chunk.
type Metadata struct {
	Prompt                string  `json:"prompt"`
	Seed                  int64   `json:"seed"`
	Steps                 int     `json:"steps"`
	GuidanceScale         float64 `json:"guidance_scale"`
	Width                 int     `json:"width"`
	Height                int     `json:"height"`
	Model                 string  `json:"model"`
	GenerationTimeSeconds float64 `json:"generation_time_seconds"`
	Timestamp             string  `json:"timestamp"`
}

// MetadataFor builds the metadata record of a generation.
func MetadataFor(res *manager.GenerationResult) Metadata {
	return Metadata{
		Prompt:                res.Prompt,
		Seed:                  res.Seed,
		Steps:                 res.Steps,
		GuidanceScale:         res.Guidance,
		Width:                 res.Width,
		Height:                res.Height,
		Model:                 res.ModelID,
		GenerationTimeSeconds: math.Round(res.Elapsed.Seconds()*100) / 100,
		Timestamp:             res.Timestamp.Format(time.RFC3339),
	}
}

// Saved lists where a generation was written.
type Saved struct {
	ImagePath     string
	SidecarPath   string
	ThumbnailPath string
	// Thumbnail is the encoded thumbnail PNG.
	Thumbnail []byte
}

// ThumbnailBase64 returns the thumbnail as standard base64.
func (s Saved) ThumbnailBase64() string {
	return base64.StdEncoding.EncodeToString(s.Thumbnail)
}

// Writer stores artifacts under Dir.
type Writer struct {
	Dir       string
	ThumbSize int
}

// NewWriter returns a writer for dir. A leading ~ is expanded on first use.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir, ThumbSize: DefaultThumbnailSize}
}

// FileName returns "<YYYYMMDD_HHMMSS>_<seed>.png" for t and seed.
func FileName(t time.Time, seed int64) string {
	return t.Format("20060102_150405") + "_" + strconv.FormatInt(seed, 10) + ".png"
}

// Save writes the image, its sidecar and its thumbnail. When customPath is
// non-empty the image goes there instead of the output directory; the
// sidecar and thumbnail sit next to it.
func (w *Writer) Save(res *manager.GenerationResult, customPath string) (Saved, error) {
	meta := MetadataFor(res)
	path, err := w.imagePath(res, customPath)
	if err != nil {
		return Saved{}, err
	}
	params, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Saved{}, fmt.Errorf("encode metadata: %w", err)
	}
	tagged, err := EmbedText(res.Image, []TextEntry{
		{Key: "parameters", Value: string(params)},
		{Key: "prompt", Value: meta.Prompt},
		{Key: "seed", Value: strconv.FormatInt(meta.Seed, 10)},
		{Key: "steps", Value: strconv.Itoa(meta.Steps)},
		{Key: "guidance_scale", Value: strconv.FormatFloat(meta.GuidanceScale, 'f', -1, 64)},
		{Key: "model", Value: meta.Model},
		{Key: "timestamp", Value: meta.Timestamp},
	})
	if err != nil {
		return Saved{}, fmt.Errorf("embed metadata: %w", err)
	}
	if err := os.WriteFile(path, tagged, 0o644); err != nil {
		return Saved{}, fmt.Errorf("write image: %w", err)
	}

	stem := strings.TrimSuffix(path, filepath.Ext(path))
	out := Saved{ImagePath: path, SidecarPath: stem + ".json", ThumbnailPath: stem + "_thumb.png"}
	if err := os.WriteFile(out.SidecarPath, append(params, '\n'), 0o644); err != nil {
		return Saved{}, fmt.Errorf("write sidecar: %w", err)
	}
	thumb, err := Thumbnail(res.Image, w.ThumbSize)
	if err != nil {
		return Saved{}, err
	}
	if err := os.WriteFile(out.ThumbnailPath, thumb, 0o644); err != nil {
		return Saved{}, fmt.Errorf("write thumbnail: %w", err)
	}
	out.Thumbnail = thumb
	return out, nil
}

func (w *Writer) imagePath(res *manager.GenerationResult, customPath string) (string, error) {
	if customPath != "" {
		p, err := fsutil.ExpandHome(customPath)
		if err != nil {
			return "", err
		}
		customPath = p
		if filepath.Ext(customPath) == "" {
			customPath += ".png"
		}
		if _, err := fsutil.EnsureDir(filepath.Dir(customPath)); err != nil {
			return "", err
		}
		return customPath, nil
	}
	dir, err := fsutil.EnsureDir(w.Dir)
	if err != nil {
		return "", err
	}
	name := FileName(res.Timestamp, res.Seed)
	path := filepath.Join(dir, name)
	// same second, same seed: keep both
	for i := 1; fsutil.PathExists(path); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.png", strings.TrimSuffix(name, ".png"), i))
	}
	return path, nil
}

// Thumbnail scales src to fit within size x size, keeping its aspect ratio.
// Images already small enough are re-encoded unchanged.
func Thumbnail(src []byte, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultThumbnailSize
	}
	img, err := png.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	w, h := fit(b.Dx(), b.Dy(), size)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func fit(w, h, size int) (int, int) {
	if w <= size && h <= size {
		return w, h
	}
	if w >= h {
		return size, max(1, h*size/w)
	}
	return max(1, w*size/h), size
}
