// Package config loads fluxd settings from an optional file, .env files and
// FLUX_* environment variables, in increasing order of precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"fluxd/internal/registry"
	"fluxd/pkg/types"
)

// Engine kinds.
const (
	EngineHTTP      = "http"
	EngineSpawn     = "spawn"
	EngineSynthetic = "synthetic"
)

// Config holds runtime parameters for the CLI and the server. Zero values
// left after Load are filled from env-default tags.
type Config struct {
	OutputDir       string  `json:"output_dir" yaml:"output_dir" toml:"output_dir" env:"FLUX_OUTPUT_DIR" env-default:"~/flux_output"`
	DefaultModel    string  `json:"default_model" yaml:"default_model" toml:"default_model" env:"FLUX_MODEL_ID" env-default:"flux2-dev"`
	UnloadTimeout   int     `json:"unload_timeout" yaml:"unload_timeout" toml:"unload_timeout" env:"FLUX_UNLOAD_TIMEOUT" env-default:"300"`
	ModelCache      string  `json:"model_cache" yaml:"model_cache" toml:"model_cache" env:"FLUX_MODEL_CACHE"`
	DefaultSteps    int     `json:"default_steps" yaml:"default_steps" toml:"default_steps" env:"FLUX_DEFAULT_STEPS" env-default:"50"`
	DefaultGuidance float64 `json:"default_guidance" yaml:"default_guidance" toml:"default_guidance" env:"FLUX_DEFAULT_GUIDANCE" env-default:"7.5"`

	Engine    string `json:"engine" yaml:"engine" toml:"engine" env:"FLUX_ENGINE" env-default:"http"`
	EngineURL string `json:"engine_url" yaml:"engine_url" toml:"engine_url" env:"FLUX_ENGINE_URL" env-default:"http://127.0.0.1:7861"`
	EngineBin string `json:"engine_bin" yaml:"engine_bin" toml:"engine_bin" env:"FLUX_ENGINE_BIN"`
	GPUIndex  int    `json:"gpu_index" yaml:"gpu_index" toml:"gpu_index" env:"FLUX_GPU_INDEX"`
	SMIPath   string `json:"nvidia_smi" yaml:"nvidia_smi" toml:"nvidia_smi" env:"FLUX_NVIDIA_SMI" env-default:"nvidia-smi"`

	Addr        string   `json:"addr" yaml:"addr" toml:"addr" env:"FLUX_ADDR" env-default:":8080"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" env:"FLUX_CORS_ORIGINS" env-separator:","`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level" env:"FLUX_LOG_LEVEL" env-default:"info"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format" env:"FLUX_LOG_FORMAT" env-default:"console"`
	LogFile   string `json:"log_file" yaml:"log_file" toml:"log_file" env:"FLUX_LOG_FILE"`

	HistoryDB string `json:"history_db" yaml:"history_db" toml:"history_db" env:"FLUX_HISTORY_DB" env-default:"~/flux_output/history.db"`

	// Variants replaces the built-in presets when non-empty. File only.
	Variants []types.Variant `json:"variants" yaml:"variants" toml:"variants"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve builds the effective configuration: the file at path (optional),
// then .env files, then the environment, then defaults for anything unset.
// Missing .env files are ignored.
func Resolve(path string, envFiles ...string) (Config, error) {
	var cfg Config
	if path != "" {
		c, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return cfg, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	if c.UnloadTimeout < 0 {
		return fmt.Errorf("unload_timeout must be >= 0, got %d", c.UnloadTimeout)
	}
	if c.DefaultSteps < 1 || c.DefaultSteps > 100 {
		return fmt.Errorf("default_steps must be between 1 and 100, got %d", c.DefaultSteps)
	}
	if !(c.DefaultGuidance > 0) || c.DefaultGuidance > 30 {
		return fmt.Errorf("default_guidance must be > 0 and <= 30, got %v", c.DefaultGuidance)
	}
	switch c.Engine {
	case EngineHTTP:
		if strings.TrimSpace(c.EngineURL) == "" {
			return fmt.Errorf("engine_url is required for the http engine")
		}
	case EngineSpawn:
		if strings.TrimSpace(c.EngineBin) == "" {
			return fmt.Errorf("engine_bin is required for the spawn engine")
		}
	case EngineSynthetic:
	default:
		return fmt.Errorf("unknown engine %q (want http, spawn or synthetic)", c.Engine)
	}
	if _, err := registry.New(c.EffectiveVariants()); err != nil {
		return fmt.Errorf("variants: %w", err)
	}
	return nil
}

// EffectiveVariants returns the configured presets or the built-in ones.
func (c Config) EffectiveVariants() []types.Variant {
	if len(c.Variants) > 0 {
		return c.Variants
	}
	return registry.Builtin()
}
