package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/urfave/cli/v3"
)

// Gemini holds configuration of the Vertex AI Gemini client used for generation and embeddings
type Gemini struct {
	projectID string
	location  string
	model     string
}

// Flags returns CLI flags for Gemini configuration
func (g *Gemini) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini (outline generation is disabled when empty)",
			Category:    "Gemini",
			Sources:     cli.EnvVars("STORYWEAVER_GEMINI_PROJECT"),
			Destination: &g.projectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Category:    "Gemini",
			Sources:     cli.EnvVars("STORYWEAVER_GEMINI_LOCATION"),
			Destination: &g.location,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Generative model name (client default when empty)",
			Category:    "Gemini",
			Sources:     cli.EnvVars("STORYWEAVER_GEMINI_MODEL"),
			Destination: &g.model,
		},
	}
}

// LogAttrs returns log attributes for the Gemini configuration
func (g *Gemini) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("project_id", g.projectID),
		slog.String("location", g.location),
		slog.String("model", g.model),
	}
}

// Configure returns the client, or nil when no project is set. With a nil client the
// pipeline still ingests with the hash embedder but cannot generate.
func (g *Gemini) Configure(ctx context.Context) (gollem.LLMClient, error) {
	if g.projectID == "" {
		return nil, nil
	}
	if g.location == "" {
		return nil, goerr.Wrap(ErrMissingRequired, "gemini-location is required with gemini-project")
	}

	var opts []gemini.Option
	if g.model != "" {
		opts = append(opts, gemini.WithModel(g.model))
	}

	client, err := gemini.New(ctx, g.projectID, g.location, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client",
			goerr.V("project_id", g.projectID),
			goerr.V("location", g.location))
	}
	return client, nil
}
