package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fluxd/internal/gallery"
	"fluxd/internal/manager"
)

type generateOptions struct {
	steps       int
	guidance    float64
	width       int
	height      int
	seed        int64
	model       string
	output      string
	outputDir   string
	interactive bool
	verbose     bool
}

func newGenerateCmd(app *App) *cobra.Command {
	var o generateOptions
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate an image from a text prompt",
		Example: `  fluxd generate "a beautiful sunset over mountains"
  fluxd generate "portrait of a cat" --steps 35 --seed 42
  fluxd generate --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !o.interactive && len(args) == 0 {
				return errors.New("prompt is required (fluxd generate \"your prompt\" or fluxd generate --interactive)")
			}
			if err := manager.ValidateDimensions(o.width, o.height); err != nil {
				return err
			}
			if o.verbose {
				app.log = app.log.Level(zerolog.DebugLevel)
			}

			m, err := app.newManager(0, nil)
			if err != nil {
				return err
			}
			defer m.Close(context.Background())
			gal, closeGallery, err := app.newGallery(o.outputDir)
			if err != nil {
				return err
			}
			defer closeGallery()

			if o.interactive {
				return app.interactive(cmd.Context(), m, gal, o)
			}
			req := manager.GenerationRequest{Prompt: args[0], Variant: o.model, Width: o.width, Height: o.height}
			flags := cmd.Flags()
			if flags.Changed("steps") {
				req.Steps = &o.steps
			}
			if flags.Changed("guidance") {
				req.Guidance = &o.guidance
			}
			if flags.Changed("seed") {
				req.Seed = &o.seed
			}
			return app.generateOne(cmd.Context(), m, gal, req, o.output, o.verbose)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&o.steps, "steps", "s", 0, "Inference steps, 1-100 (default: model preset)")
	f.Float64VarP(&o.guidance, "guidance", "g", 0, "Guidance scale (default: model preset)")
	f.IntVarP(&o.width, "width", "w", 1024, "Image width in pixels (multiple of 8, 256-2048)")
	f.IntVarP(&o.height, "height", "H", 1024, "Image height in pixels (multiple of 8, 256-2048)")
	f.Int64Var(&o.seed, "seed", 0, "Random seed for reproducibility (random if unset)")
	f.StringVarP(&o.model, "model", "m", "", "Model preset or id (default: FLUX_MODEL_ID)")
	f.StringVarP(&o.output, "output", "o", "", "Custom output path (default: auto-generated)")
	f.StringVar(&o.outputDir, "output-dir", "", "Override output directory")
	f.BoolVarP(&o.interactive, "interactive", "i", false, "Interactive mode with prompts")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Verbose output with debug info")
	return cmd
}

// generateOne runs one generation and reports where it was written.
func (a *App) generateOne(ctx context.Context, m *manager.Manager, gal *gallery.Gallery, req manager.GenerationRequest, output string, verbose bool) error {
	if !m.Loaded() {
		fmt.Fprintln(a.Out, "Loading model on first use...")
	}
	color.New(color.FgCyan, color.Bold).Fprintln(a.Out, "Generating image...")
	if verbose {
		fmt.Fprintf(a.Out, "  Prompt: %s\n", req.Prompt)
		if req.Steps != nil {
			fmt.Fprintf(a.Out, "  Steps: %d\n", *req.Steps)
		}
		if req.Guidance != nil {
			fmt.Fprintf(a.Out, "  Guidance: %g\n", *req.Guidance)
		}
		fmt.Fprintf(a.Out, "  Resolution: %dx%d\n", req.Width, req.Height)
		if req.Seed != nil {
			fmt.Fprintf(a.Out, "  Seed: %d\n", *req.Seed)
		}
	}

	res, err := m.Generate(ctx, req)
	if err != nil {
		a.reportGenerateError(req, err)
		return err
	}
	entry, err := gal.Save(ctx, res, output)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.Out)
	color.New(color.FgGreen, color.Bold).Fprintln(a.Out, "Image generated successfully!")
	fmt.Fprintln(a.Out)
	fmt.Fprintf(a.Out, "  Image: %s\n", entry.Files.ImagePath)
	fmt.Fprintf(a.Out, "  Metadata: %s\n", entry.Files.SidecarPath)
	if entry.Files.ThumbnailPath != "" {
		fmt.Fprintf(a.Out, "  Thumbnail: %s\n", entry.Files.ThumbnailPath)
	}
	fmt.Fprintf(a.Out, "  Model: %s (%s)\n", res.Variant, res.ModelID)
	fmt.Fprintf(a.Out, "  Steps: %d, Guidance: %g\n", res.Steps, res.Guidance)
	fmt.Fprintf(a.Out, "  Generation time: %.2fs\n", res.Elapsed.Seconds())
	fmt.Fprintf(a.Out, "  Seed: %d\n", res.Seed)
	if !verbose {
		color.New(color.FgHiBlack).Fprintf(a.Out, "\nTip: Use --seed %d to reproduce this image\n", res.Seed)
	}
	return nil
}

func (a *App) reportGenerateError(req manager.GenerationRequest, err error) {
	if !manager.IsResourceExhausted(err) {
		return
	}
	red := color.New(color.FgRed)
	fmt.Fprintln(a.Out)
	red.Fprintln(a.Out, "Out of accelerator memory!")
	if w, h, ok := manager.SmallerSize(err); ok {
		fmt.Fprintln(a.Out, "\nTry reducing resolution:")
		fmt.Fprintf(a.Out, "  fluxd generate '%s' --width %d --height %d\n", req.Prompt, w, h)
		return
	}
	if s := manager.Suggestion(err); s != "" {
		fmt.Fprintf(a.Out, "\nSuggestion: %s\n", s)
	}
}
