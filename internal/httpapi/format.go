package httpapi

import (
	"fmt"
	"strings"
	"time"

	"fluxd/internal/gallery"
	"fluxd/internal/manager"
	"fluxd/pkg/types"
)

func formatGenerated(res *manager.GenerationResult, entry gallery.Entry) string {
	var b strings.Builder
	b.WriteString("Image generated successfully!\n\n")
	fmt.Fprintf(&b, "Full-size image: %s\n", entry.Files.ImagePath)
	if entry.Files.ThumbnailPath != "" {
		fmt.Fprintf(&b, "Thumbnail: %s\n", entry.Files.ThumbnailPath)
	}
	if entry.Record.ID != "" {
		fmt.Fprintf(&b, "ID: %s\n", entry.Record.ID)
	}
	fmt.Fprintf(&b, "Seed: %d\n", res.Seed)
	b.WriteString("Settings:\n")
	fmt.Fprintf(&b, "  - Model: %s (%s)\n", res.Variant, res.ModelID)
	fmt.Fprintf(&b, "  - Steps: %d\n", res.Steps)
	fmt.Fprintf(&b, "  - Guidance Scale: %g\n", res.Guidance)
	fmt.Fprintf(&b, "  - Resolution: %dx%d\n", res.Width, res.Height)
	fmt.Fprintf(&b, "  - Generation Time: %.2fs\n", res.Elapsed.Seconds())
	b.WriteString("\nUse the same seed to reproduce this image.\n")
	if len(entry.Files.Thumbnail) > 0 {
		b.WriteString("A 512x512 thumbnail is attached for preview.\n")
	}
	return b.String()
}

func formatStatus(st types.StatusResponse) string {
	var b strings.Builder
	if st.ModelLoaded {
		fmt.Fprintf(&b, "Model status: LOADED (%s)\n\n", st.CurrentModel)
		fmt.Fprintf(&b, "Time until auto-unload: %s\n", untilUnload(st))
		fmt.Fprintf(&b, "Auto-unload timeout: %s\n", timeoutText(st.TimeoutSeconds))
		fmt.Fprintf(&b, "Last access: %s\n", st.LastAccess)
	} else {
		b.WriteString("Model status: NOT LOADED\n\n")
		fmt.Fprintf(&b, "Auto-unload timeout: %s\n", timeoutText(st.TimeoutSeconds))
		b.WriteString("The model loads automatically on the next generation request.\n")
	}
	if v := st.VRAMUsage; v != nil {
		b.WriteString("\nVRAM usage")
		if v.Device != "" {
			fmt.Fprintf(&b, " (%s)", v.Device)
		}
		b.WriteString(":\n")
		fmt.Fprintf(&b, "  - Allocated: %.2f GB\n", v.AllocatedGB)
		fmt.Fprintf(&b, "  - Reserved: %.2f GB\n", v.ReservedGB)
		if v.TotalGB > 0 {
			fmt.Fprintf(&b, "  - Total: %.2f GB\n", v.TotalGB)
		}
	}
	return b.String()
}

func untilUnload(st types.StatusResponse) string {
	if st.TimeUntilUnload == nil {
		return "disabled"
	}
	return (time.Duration(*st.TimeUntilUnload) * time.Second).String()
}

func timeoutText(secs int) string {
	if secs == 0 {
		return "disabled"
	}
	return fmt.Sprintf("%ds", secs)
}

func formatVariants(vs []types.Variant, def string) string {
	var b strings.Builder
	b.WriteString("Available models:\n")
	for _, v := range vs {
		mark := " "
		if v.Name == def {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s %s: %s (steps %d, guidance %g)\n", mark, v.Name, v.ModelID, v.DefaultSteps, v.DefaultGuidance)
	}
	return b.String()
}

func formatRecords(recs []types.ImageRecord) string {
	if len(recs) == 0 {
		return "No images generated yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d recent image(s):\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(&b, "- %s  %s  seed %d  %dx%d  %q\n", r.ID, r.CreatedAt, r.Seed, r.Width, r.Height, truncate(r.Prompt, 60))
	}
	return b.String()
}

func formatRecord(r types.ImageRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Image %s\n\n", r.ID)
	fmt.Fprintf(&b, "Prompt: %s\n", r.Prompt)
	fmt.Fprintf(&b, "Path: %s\n", r.ImagePath)
	fmt.Fprintf(&b, "Seed: %d\n", r.Seed)
	fmt.Fprintf(&b, "Model: %s\n", r.Variant)
	fmt.Fprintf(&b, "Steps: %d\n", r.Steps)
	fmt.Fprintf(&b, "Guidance Scale: %g\n", r.Guidance)
	fmt.Fprintf(&b, "Resolution: %dx%d\n", r.Width, r.Height)
	fmt.Fprintf(&b, "Generation Time: %.2fs\n", float64(r.DurationMillis)/1000)
	fmt.Fprintf(&b, "Created: %s\n", r.CreatedAt)
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
