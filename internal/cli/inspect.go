package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fluxd/internal/common/fsutil"
	"fluxd/internal/config"
	"fluxd/internal/engine"
	"fluxd/internal/registry"
	"fluxd/pkg/types"
)

const defaultModelCache = "~/.cache/huggingface/hub"

type row struct {
	key, value string
	clr        *color.Color
}

// printTable writes a two-column table with a colored title.
func printTable(w io.Writer, title string, head [2]string, rows []row) {
	width := len(head[0])
	for _, r := range rows {
		if len(r.key) > width {
			width = len(r.key)
		}
	}
	color.New(color.FgCyan, color.Bold).Fprintln(w, title)
	bold := color.New(color.Bold)
	bold.Fprintf(w, "  %-*s  %s\n", width, head[0], head[1])
	fmt.Fprintf(w, "  %s  %s\n", strings.Repeat("-", width), strings.Repeat("-", len(head[1])))
	key := color.New(color.FgCyan)
	for _, r := range rows {
		key.Fprintf(w, "  %-*s", width, r.key)
		if r.clr != nil {
			r.clr.Fprintf(w, "  %s\n", r.value)
			continue
		}
		fmt.Fprintf(w, "  %s\n", r.value)
	}
}

func gb(n uint64) string { return fmt.Sprintf("%.2f GB", engine.GB(n)) }

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show generator status and accelerator information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.newManager(0, nil)
			if err != nil {
				return err
			}
			defer m.Close(context.Background())
			ctx := cmd.Context()
			cfg := app.cfg
			green, red := color.New(color.FgGreen), color.New(color.FgRed)

			rows := []row{
				{key: "Default model", value: defaultModelText(m.Variants(), m.DefaultVariant())},
				{key: "Output directory", value: cfg.OutputDir},
				{key: "Engine", value: engineText(cfg)},
			}
			rep := m.SanityCheck(ctx)
			if rep.Reachable {
				rows = append(rows, row{key: "Engine reachable", value: "yes", clr: green})
			} else {
				rows = append(rows, row{key: "Engine reachable", value: "no: " + rep.Error, clr: red})
			}

			st := m.Status(ctx)
			if u := st.Utilization; u != nil {
				rows = append(rows,
					row{key: "Accelerator", value: u.Device, clr: green},
					row{key: "Total VRAM", value: gb(u.TotalBytes)},
					row{key: "Allocated VRAM", value: gb(u.AllocatedBytes)},
					row{key: "Reserved VRAM", value: gb(u.ReservedBytes)},
				)
			} else {
				rows = append(rows, row{key: "Accelerator", value: "not available", clr: red})
			}

			cache := cfg.ModelCache
			if cache == "" {
				rows = append(rows, row{key: "Model cache", value: defaultModelCache + " (default)"})
				cache = defaultModelCache
			} else {
				rows = append(rows, row{key: "Model cache", value: cache})
			}
			ids, err := registry.ScanCache(cache)
			switch {
			case err != nil:
				rows = append(rows, row{key: "Cached models", value: err.Error(), clr: red})
			case len(ids) == 0:
				rows = append(rows, row{key: "Cached models", value: "none"})
			default:
				rows = append(rows, row{key: "Cached models", value: strings.Join(ids, ", ")})
			}
			printTable(app.Out, "FLUX Generator Status", [2]string{"Setting", "Value"}, rows)
			return nil
		},
	}
}

func defaultModelText(vs []types.Variant, def string) string {
	for _, v := range vs {
		if v.Name == def {
			return fmt.Sprintf("%s (%s)", v.Name, v.ModelID)
		}
	}
	return def
}

func engineText(cfg config.Config) string {
	switch cfg.Engine {
	case config.EngineHTTP:
		return fmt.Sprintf("%s (%s)", cfg.Engine, cfg.EngineURL)
	case config.EngineSpawn:
		return fmt.Sprintf("%s (%s)", cfg.Engine, cfg.EngineBin)
	}
	return cfg.Engine
}

func newConfigCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			rows := []row{
				{key: "FLUX_OUTPUT_DIR", value: cfg.OutputDir},
				{key: "FLUX_MODEL_ID", value: cfg.DefaultModel},
				{key: "FLUX_UNLOAD_TIMEOUT", value: fmt.Sprintf("%ds (server only)", cfg.UnloadTimeout)},
				{key: "FLUX_DEFAULT_STEPS", value: fmt.Sprint(cfg.DefaultSteps)},
				{key: "FLUX_DEFAULT_GUIDANCE", value: fmt.Sprint(cfg.DefaultGuidance)},
				{key: "FLUX_ENGINE", value: cfg.Engine},
				{key: "FLUX_ENGINE_URL", value: cfg.EngineURL},
			}
			optional := []row{
				{key: "FLUX_MODEL_CACHE", value: cfg.ModelCache},
				{key: "FLUX_ENGINE_BIN", value: cfg.EngineBin},
				{key: "FLUX_LOG_FILE", value: cfg.LogFile},
				{key: "FLUX_HISTORY_DB", value: cfg.HistoryDB},
				{key: "FLUX_CORS_ORIGINS", value: strings.Join(cfg.CORSOrigins, ",")},
			}
			for _, r := range optional {
				if r.value != "" {
					rows = append(rows, r)
				}
			}
			rows = append(rows,
				row{key: "FLUX_ADDR", value: cfg.Addr},
				row{key: "FLUX_LOG_LEVEL", value: cfg.LogLevel},
			)
			printTable(app.Out, "FLUX Configuration", [2]string{"Variable", "Value"}, rows)

			fmt.Fprintln(app.Out)
			color.New(color.Bold).Fprintln(app.Out, "Models:")
			for _, v := range cfg.EffectiveVariants() {
				mark := " "
				if v.Name == cfg.DefaultModel || v.ModelID == cfg.DefaultModel {
					mark = "*"
				}
				fmt.Fprintf(app.Out, "  %s %s: %s (steps %d, guidance %g)\n", mark, v.Name, v.ModelID, v.DefaultSteps, v.DefaultGuidance)
			}

			dim := color.New(color.FgHiBlack)
			fmt.Fprintln(app.Out)
			if app.configPath != "" {
				dim.Fprintf(app.Out, "Config file: %s\n", app.configPath)
			}
			for _, f := range app.EnvFiles {
				state := "not found"
				if fsutil.PathExists(f) {
					state = "loaded"
				}
				dim.Fprintf(app.Out, "Env file: %s (%s)\n", f, state)
			}
			return nil
		},
	}
}

func newOpenOutputCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "open-output",
		Short: "Open the output directory in the file manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := fsutil.ExpandHome(app.cfg.OutputDir)
			if err != nil {
				return err
			}
			if !fsutil.PathExists(dir) {
				color.New(color.FgYellow).Fprintf(app.Out, "Output directory doesn't exist yet: %s\n", dir)
				color.New(color.FgHiBlack).Fprintln(app.Out, "It will be created when you generate your first image.")
				return nil
			}
			if err := app.Open(dir); err != nil {
				return fmt.Errorf("open %s: %w", dir, err)
			}
			fmt.Fprintf(app.Out, "Opened %s\n", dir)
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently generated images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be positive")
			}
			gal, closeGallery, err := app.newGallery("")
			if err != nil {
				return err
			}
			defer closeGallery()
			recs, err := gal.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(app.Out, "No images generated yet.")
				return nil
			}
			bold := color.New(color.Bold)
			bold.Fprintf(app.Out, "%-36s  %-24s  %10s  %9s  %s\n", "ID", "CREATED", "SEED", "SIZE", "PROMPT")
			for _, r := range recs {
				fmt.Fprintf(app.Out, "%-36s  %-24s  %10d  %9s  %s\n",
					r.ID, r.CreatedAt, r.Seed, fmt.Sprintf("%dx%d", r.Width, r.Height), shorten(r.Prompt, 50))
				color.New(color.FgHiBlack).Fprintf(app.Out, "%-36s  %s\n", "", r.ImagePath)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
