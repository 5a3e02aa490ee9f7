// Package cli implements the fluxd command line: one-shot and interactive
// generation, inspection commands and the tool-call server.
package cli

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog"

	"fluxd/internal/artifact"
	"fluxd/internal/common/fsutil"
	"fluxd/internal/config"
	"fluxd/internal/engine"
	"fluxd/internal/gallery"
	"fluxd/internal/gpu"
	"fluxd/internal/history"
	"fluxd/internal/logging"
	"fluxd/internal/manager"
)

// App carries the streams and collaborators shared by all commands. Tests
// replace the factories.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// EnvFiles are loaded before the environment is read. Missing files are
	// skipped.
	EnvFiles []string

	// NewEngine builds the engine and its optional utilization fallback.
	NewEngine func(cfg config.Config, log zerolog.Logger) (engine.Engine, engine.Prober)
	// Open opens a directory in the desktop file manager.
	Open func(dir string) error

	configPath string
	logLevel   string
	engineKind string

	cfg       config.Config
	log       zerolog.Logger
	logCloser io.Closer
}

// NewApp returns an App wired to the process streams.
func NewApp() *App {
	return &App{
		In:        os.Stdin,
		Out:       os.Stdout,
		Err:       os.Stderr,
		EnvFiles:  defaultEnvFiles(),
		NewEngine: BuildEngine,
		Open:      openDir,
		log:       zerolog.Nop(),
	}
}

func defaultEnvFiles() []string {
	files := []string{".env"}
	if p, err := fsutil.ExpandHome("~/.config/fluxd/.env"); err == nil {
		files = append(files, p)
	}
	return files
}

// load resolves configuration and logging. Flag values win over the file
// and the environment.
func (a *App) load() error {
	cfg, err := config.Resolve(a.configPath, a.EnvFiles...)
	if err != nil {
		return err
	}
	if a.engineKind != "" {
		cfg.Engine = a.engineKind
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, closer, err := logging.New(logging.Options{
		Level: cfg.LogLevel,
		JSON:  cfg.LogFormat == "json",
		File:  cfg.LogFile,
	}, a.Err)
	if err != nil {
		return err
	}
	a.cfg, a.log, a.logCloser = cfg, log, closer
	return nil
}

func (a *App) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

// BuildEngine maps the configured engine kind to an implementation. The
// nvidia-smi prober backs utilization for the real engines.
func BuildEngine(cfg config.Config, log zerolog.Logger) (engine.Engine, engine.Prober) {
	smi := gpu.NewSMIProber(cfg.SMIPath, cfg.GPUIndex)
	switch cfg.Engine {
	case config.EngineSpawn:
		return engine.NewSpawn(engine.SpawnConfig{Bin: cfg.EngineBin, Logger: log}), smi
	case config.EngineSynthetic:
		return engine.NewSynthetic(engine.SyntheticConfig{}), nil
	default:
		return engine.NewHTTP(engine.HTTPConfig{BaseURL: cfg.EngineURL, Logger: log}), smi
	}
}

// newManager builds a manager for the current config. idleTimeout overrides
// the configured one; the CLI keeps the model until it exits.
func (a *App) newManager(idleTimeout int, pub manager.EventPublisher) (*manager.Manager, error) {
	eng, fallback := a.NewEngine(a.cfg, a.log)
	logger := a.log
	return manager.NewWithConfig(manager.ManagerConfig{
		Engine:             eng,
		Fallback:           fallback,
		Variants:           a.cfg.EffectiveVariants(),
		DefaultVariant:     a.cfg.DefaultModel,
		GlobalSteps:        a.cfg.DefaultSteps,
		GlobalGuidance:     a.cfg.DefaultGuidance,
		CacheDir:           a.cfg.ModelCache,
		IdleTimeoutSeconds: idleTimeout,
		Logger:             &logger,
		Publisher:          pub,
	})
}

// newGallery opens the artifact writer and, when configured, the history
// store. The returned func closes the store.
func (a *App) newGallery(outputDir string) (*gallery.Gallery, func(), error) {
	if outputDir == "" {
		outputDir = a.cfg.OutputDir
	}
	var store *history.Store
	if a.cfg.HistoryDB != "" {
		s, err := history.Open(a.cfg.HistoryDB)
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w", err)
		}
		store = s
	}
	closeFn := func() {
		if store != nil {
			_ = store.Close()
		}
	}
	return gallery.New(artifact.NewWriter(outputDir), store, a.log), closeFn, nil
}

func openDir(dir string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}
	return cmd.Start()
}
