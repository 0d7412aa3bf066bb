package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/storyweaver/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// AppConfig represents the application configuration file
type AppConfig struct {
	Outline  PromptConfig `toml:"outline"`
	Analysis PromptConfig `toml:"analysis"`
	Search   SearchConfig `toml:"search"`
}

// PromptConfig overrides the default instruction of a generation task
type PromptConfig struct {
	Instruction string `toml:"instruction"`
}

// SearchConfig bounds similarity search results
type SearchConfig struct {
	DefaultTopK int `toml:"default_top_k"`
	MaxTopK     int `toml:"max_top_k"`
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	if a.Search.DefaultTopK < 0 {
		return goerr.Wrap(ErrInvalidConfig, "search.default_top_k must not be negative", goerr.V("value", a.Search.DefaultTopK))
	}
	if a.Search.MaxTopK < 0 {
		return goerr.Wrap(ErrInvalidConfig, "search.max_top_k must not be negative", goerr.V("value", a.Search.MaxTopK))
	}
	if a.Search.DefaultTopK > 0 && a.Search.MaxTopK > 0 && a.Search.DefaultTopK > a.Search.MaxTopK {
		return goerr.Wrap(ErrInvalidConfig, "search.default_top_k exceeds search.max_top_k",
			goerr.V("default_top_k", a.Search.DefaultTopK),
			goerr.V("max_top_k", a.Search.MaxTopK),
		)
	}
	return nil
}

// LoadAppConfiguration loads the application configuration from a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(errors.Join(ErrInvalidConfig, err), "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &config, nil
}

// Apply overlays the configured values on base. Zero values keep base.
func (a *AppConfig) Apply(base usecase.Settings) usecase.Settings {
	if s := strings.TrimSpace(a.Outline.Instruction); s != "" {
		base.OutlineInstruction = s
	}
	if s := strings.TrimSpace(a.Analysis.Instruction); s != "" {
		base.AnalysisInstruction = s
	}
	if a.Search.DefaultTopK > 0 {
		base.DefaultTopK = a.Search.DefaultTopK
	}
	if a.Search.MaxTopK > 0 {
		base.MaxTopK = a.Search.MaxTopK
	}
	if base.DefaultTopK > base.MaxTopK {
		base.DefaultTopK = base.MaxTopK
	}
	return base
}

// App holds the CLI flag pointing at the application configuration file
type App struct {
	path string
}

// Flags returns CLI flags for the application configuration file
func (a *App) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the TOML configuration file",
			Category:    "Config",
			Sources:     cli.EnvVars("STORYWEAVER_CONFIG"),
			Destination: &a.path,
		},
	}
}

// Settings returns the use case settings, reading the configuration file when one is set
func (a *App) Settings() (usecase.Settings, error) {
	settings := usecase.DefaultSettings()
	if a.path == "" {
		return settings, nil
	}

	cfg, err := LoadAppConfiguration(a.path)
	if err != nil {
		return settings, err
	}
	return cfg.Apply(settings), nil
}
