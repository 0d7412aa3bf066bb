package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/service/generator"
	"github.com/urfave/cli/v3"
)

// Generation holds CLI flags for model call retry and schema repair
type Generation struct {
	maxAttempts          int
	baseDelay            time.Duration
	maxDelay             time.Duration
	timeout              time.Duration
	schemaRepairAttempts int
}

// Flags returns CLI flags for generation configuration
func (g *Generation) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "generation-max-attempts",
			Usage:       "Model calls per generation before giving up on transient errors",
			Value:       3,
			Category:    "Generation",
			Sources:     cli.EnvVars("STORYWEAVER_GENERATION_MAX_ATTEMPTS"),
			Destination: &g.maxAttempts,
		},
		&cli.DurationFlag{
			Name:        "generation-base-delay",
			Usage:       "Initial backoff between model calls",
			Value:       time.Second,
			Category:    "Generation",
			Sources:     cli.EnvVars("STORYWEAVER_GENERATION_BASE_DELAY"),
			Destination: &g.baseDelay,
		},
		&cli.DurationFlag{
			Name:        "generation-max-delay",
			Usage:       "Upper bound of backoff between model calls",
			Value:       10 * time.Second,
			Category:    "Generation",
			Sources:     cli.EnvVars("STORYWEAVER_GENERATION_MAX_DELAY"),
			Destination: &g.maxDelay,
		},
		&cli.DurationFlag{
			Name:        "generation-timeout",
			Usage:       "Timeout of a single model call",
			Value:       45 * time.Second,
			Category:    "Generation",
			Sources:     cli.EnvVars("STORYWEAVER_GENERATION_TIMEOUT"),
			Destination: &g.timeout,
		},
		&cli.IntFlag{
			Name:        "schema-repair-attempts",
			Usage:       "Regenerations allowed when the model output does not match the schema",
			Value:       1,
			Category:    "Generation",
			Sources:     cli.EnvVars("STORYWEAVER_SCHEMA_REPAIR_ATTEMPTS"),
			Destination: &g.schemaRepairAttempts,
		},
	}
}

// LogAttrs returns log attributes for the generation configuration
func (g *Generation) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("max_attempts", g.maxAttempts),
		slog.Duration("base_delay", g.baseDelay),
		slog.Duration("max_delay", g.maxDelay),
		slog.Duration("timeout", g.timeout),
		slog.Int("schema_repair_attempts", g.schemaRepairAttempts),
	}
}

// SchemaRepairAttempts returns the number of schema repair regenerations
func (g *Generation) SchemaRepairAttempts() int {
	return g.schemaRepairAttempts
}

// Options validates the flags and converts them into generator options
func (g *Generation) Options() ([]generator.Option, error) {
	if g.maxAttempts < 1 {
		return nil, goerr.Wrap(ErrInvalidConfig, "generation-max-attempts must be at least 1", goerr.V("value", g.maxAttempts))
	}
	if g.baseDelay < 0 || g.maxDelay < g.baseDelay {
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid generation backoff",
			goerr.V("base_delay", g.baseDelay),
			goerr.V("max_delay", g.maxDelay),
		)
	}
	if g.timeout <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "generation-timeout must be positive", goerr.V("value", g.timeout))
	}
	if g.schemaRepairAttempts < 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "schema-repair-attempts must not be negative", goerr.V("value", g.schemaRepairAttempts))
	}

	return []generator.Option{
		generator.WithRetry(g.maxAttempts, g.baseDelay, g.maxDelay),
		generator.WithTimeout(g.timeout),
	}, nil
}
