// Package gallery ties the artifact writer to the history store: saving a
// generation writes its files and records it, and recorded generations can
// be listed and fetched again.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"fluxd/internal/artifact"
	"fluxd/internal/history"
	"fluxd/internal/manager"
	"fluxd/pkg/types"
)

// ErrHistoryDisabled is returned by List and Get without a history store.
var ErrHistoryDisabled = errors.New("generation history is disabled")

// ErrNotFound aliases the store's not-found error.
var ErrNotFound = history.ErrNotFound

// Entry is one saved generation.
type Entry struct {
	Record types.ImageRecord
	Files  artifact.Saved
}

// Gallery saves artifacts and, when a store is configured, records them.
type Gallery struct {
	writer *artifact.Writer
	store  *history.Store
	log    zerolog.Logger
}

// New returns a gallery. store may be nil.
func New(writer *artifact.Writer, store *history.Store, log zerolog.Logger) *Gallery {
	return &Gallery{writer: writer, store: store, log: log.With().Str("component", "gallery").Logger()}
}

// OutputDir is where images are written by default.
func (g *Gallery) OutputDir() string { return g.writer.Dir }

// Save writes res to disk and records it. A history failure is logged and
// does not fail the save: the image is already on disk.
func (g *Gallery) Save(ctx context.Context, res *manager.GenerationResult, customPath string) (Entry, error) {
	files, err := g.writer.Save(res, customPath)
	if err != nil {
		return Entry{}, fmt.Errorf("save artifacts: %w", err)
	}
	rec := types.ImageRecord{
		ID:             res.ID,
		Prompt:         res.Prompt,
		Variant:        res.Variant,
		Seed:           res.Seed,
		Steps:          res.Steps,
		Guidance:       res.Guidance,
		Width:          res.Width,
		Height:         res.Height,
		DurationMillis: res.Elapsed.Milliseconds(),
		ImagePath:      files.ImagePath,
		ThumbnailPath:  files.ThumbnailPath,
		SidecarPath:    files.SidecarPath,
		CreatedAt:      res.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if g.store != nil {
		stored, err := g.store.Record(ctx, rec)
		if err != nil {
			g.log.Warn().Err(err).Str("image", files.ImagePath).Msg("history record failed")
		} else {
			rec = stored
		}
	}
	return Entry{Record: rec, Files: files}, nil
}

// List returns recent generations, newest first.
func (g *Gallery) List(ctx context.Context, limit int) ([]types.ImageRecord, error) {
	if g.store == nil {
		return nil, ErrHistoryDisabled
	}
	return g.store.List(ctx, limit)
}

// Get returns a recorded generation.
func (g *Gallery) Get(ctx context.Context, id string) (types.ImageRecord, error) {
	if g.store == nil {
		return types.ImageRecord{}, ErrHistoryDisabled
	}
	return g.store.Get(ctx, id)
}

// Preview returns a thumbnail PNG for rec: the stored thumbnail when it is
// still on disk, otherwise one rendered from the full image.
func (g *Gallery) Preview(rec types.ImageRecord) ([]byte, error) {
	if rec.ThumbnailPath != "" {
		if b, err := os.ReadFile(rec.ThumbnailPath); err == nil {
			return b, nil
		}
	}
	b, err := os.ReadFile(rec.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return artifact.Thumbnail(b, g.writer.ThumbSize)
}
