package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"fluxd/internal/gallery"
	"fluxd/internal/manager"
)

var errInputClosed = errors.New("input closed")

// session reads answers line by line from the app input.
type session struct {
	app *App
	sc  *bufio.Scanner
}

func (s *session) ask(label string) (string, error) {
	fmt.Fprint(s.app.Out, label)
	if !s.sc.Scan() {
		return "", errInputClosed
	}
	return strings.TrimSpace(s.sc.Text()), nil
}

func isQuit(s string) bool {
	switch strings.ToLower(s) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

// interactive generates images in a loop with one loaded model until the
// user quits or input ends.
func (a *App) interactive(ctx context.Context, m *manager.Manager, gal *gallery.Gallery, o generateOptions) error {
	s := &session{app: a, sc: bufio.NewScanner(a.In)}
	dim := color.New(color.FgHiBlack)
	red := color.New(color.FgRed)

	color.New(color.FgCyan, color.Bold).Fprintln(a.Out, "FLUX Image Generator - Interactive Mode")
	dim.Fprintln(a.Out, "Generate multiple images with the same loaded model")

	steps, guidance := a.presetDefaults(m, o.model)
	for {
		fmt.Fprintln(a.Out, "\n"+strings.Repeat("-", 60))
		prompt, err := s.ask("\nEnter prompt (or 'quit' to exit): ")
		if err != nil || isQuit(prompt) {
			dim.Fprintln(a.Out, "\nGoodbye!")
			return nil
		}
		if prompt == "" {
			color.New(color.FgYellow).Fprintln(a.Out, "Prompt cannot be empty")
			continue
		}

		req, err := s.params(prompt, o.model, steps, guidance)
		if errors.Is(err, errInputClosed) {
			dim.Fprintln(a.Out, "\nGoodbye!")
			return nil
		}
		if err != nil {
			red.Fprintf(a.Out, "Invalid input: %v\n", err)
			continue
		}
		if err := manager.ValidateDimensions(req.Width, req.Height); err != nil {
			red.Fprintf(a.Out, "%v\n", err)
			continue
		}
		if err := a.generateOne(ctx, m, gal, req, "", false); err != nil {
			red.Fprintf(a.Out, "Error: %v\n", err)
		}

		fmt.Fprintln(a.Out)
		again, err := s.ask("Generate another image? [y/N]: ")
		if err != nil || (strings.ToLower(again) != "y" && strings.ToLower(again) != "yes") {
			dim.Fprintln(a.Out, "\nGoodbye!")
			return nil
		}
	}
}

// params asks for each setting, falling back to the shown default on an
// empty answer.
func (s *session) params(prompt, variant string, steps int, guidance float64) (manager.GenerationRequest, error) {
	req := manager.GenerationRequest{Prompt: prompt, Variant: variant}

	in, err := s.ask(fmt.Sprintf("Steps [%d]: ", steps))
	if err != nil {
		return req, err
	}
	n, err := intOr(in, steps)
	if err != nil {
		return req, fmt.Errorf("steps: %w", err)
	}
	req.Steps = &n

	in, err = s.ask(fmt.Sprintf("Guidance scale [%g]: ", guidance))
	if err != nil {
		return req, err
	}
	g := guidance
	if in != "" {
		if g, err = strconv.ParseFloat(in, 64); err != nil {
			return req, fmt.Errorf("guidance: %w", err)
		}
	}
	req.Guidance = &g

	in, err = s.ask("Width [1024]: ")
	if err != nil {
		return req, err
	}
	if req.Width, err = intOr(in, 1024); err != nil {
		return req, fmt.Errorf("width: %w", err)
	}
	in, err = s.ask("Height [1024]: ")
	if err != nil {
		return req, err
	}
	if req.Height, err = intOr(in, 1024); err != nil {
		return req, fmt.Errorf("height: %w", err)
	}

	in, err = s.ask("Seed (random if empty): ")
	if err != nil {
		return req, err
	}
	if in != "" {
		seed, err := strconv.ParseInt(in, 10, 64)
		if err != nil {
			return req, fmt.Errorf("seed: %w", err)
		}
		req.Seed = &seed
	}
	return req, nil
}

func intOr(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// presetDefaults returns the steps and guidance a request for variant would
// get when it sets neither.
func (a *App) presetDefaults(m *manager.Manager, variant string) (int, float64) {
	if variant == "" {
		variant = m.DefaultVariant()
	}
	steps, guidance := a.cfg.DefaultSteps, a.cfg.DefaultGuidance
	for _, v := range m.Variants() {
		if v.Name != variant && v.ModelID != variant {
			continue
		}
		if v.DefaultSteps > 0 {
			steps = v.DefaultSteps
		}
		if v.DefaultGuidance > 0 {
			guidance = v.DefaultGuidance
		}
	}
	return steps, guidance
}
