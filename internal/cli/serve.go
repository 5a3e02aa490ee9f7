package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fluxd/internal/httpapi"
)

type serveOptions struct {
	addr         string
	corsOrigins  string
	maxBodyBytes int64
	toolTimeout  time.Duration
}

func newServeCmd(app *App) *cobra.Command {
	var o serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tool-call server with automatic idle unloading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := o.addr
			if addr == "" {
				addr = app.cfg.Addr
			}
			origins := app.cfg.CORSOrigins
			if cmd.Flags().Changed("cors-origins") {
				origins = splitCSV(o.corsOrigins)
			}
			httpapi.SetCORSOptions(len(origins) > 0, origins, nil, nil)
			httpapi.SetMaxBodyBytes(o.maxBodyBytes)
			httpapi.SetToolTimeout(o.toolTimeout)

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.serve(ctx, ln)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", "", "HTTP listen address (defaults FLUX_ADDR or :8080)")
	f.StringVar(&o.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins (defaults FLUX_CORS_ORIGINS)")
	f.Int64Var(&o.maxBodyBytes, "max-body-bytes", 1<<20, "Maximum tool call body size in bytes")
	f.DurationVar(&o.toolTimeout, "tool-timeout", 0, "Maximum time a tool call waits for the model (0 = no limit)")
	return cmd
}

// serve runs the tool-call server on ln until ctx is done, then shuts the
// server down and unloads the model.
func (a *App) serve(ctx context.Context, ln net.Listener) error {
	m, err := a.newManager(a.cfg.UnloadTimeout, httpapi.MetricsPublisher{})
	if err != nil {
		_ = ln.Close()
		return err
	}
	gal, closeGallery, err := a.newGallery("")
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer closeGallery()

	httpapi.SetLogger(a.log)
	httpapi.SetDefaultLogLevel(a.cfg.LogLevel)
	httpapi.SetBaseContext(ctx)
	srv := &http.Server{
		Handler:           httpapi.NewMux(m, gal),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if rep := m.SanityCheck(ctx); !rep.Reachable {
		a.log.Warn().Str("engine", rep.Engine).Str("error", rep.Error).Msg("engine not reachable yet; generation will fail until it is")
	}
	a.log.Info().
		Str("addr", ln.Addr().String()).
		Str("output_dir", a.cfg.OutputDir).
		Int("unload_timeout", a.cfg.UnloadTimeout).
		Str("engine", m.EngineName()).
		Msg("fluxd listening")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := m.Close(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("unload on shutdown failed")
	}
	a.log.Info().Msg("fluxd stopped")
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}

// splitCSV splits a comma-separated list and drops empty items.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
