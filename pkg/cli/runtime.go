package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/cli/config"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/observability"
	"github.com/secmon-lab/storyweaver/pkg/service/segmenter"
	"github.com/secmon-lab/storyweaver/pkg/usecase"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// pipelineConfig is the flag set shared by every command that runs the pipeline
type pipelineConfig struct {
	app        config.App
	repository config.Repository
	gemini     config.Gemini
	embedding  config.Embedding
	generation config.Generation
	archive    config.Archive
	maxChars   int
}

func (p *pipelineConfig) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "segment-max-chars",
			Usage:       "Split utterances longer than this at sentence boundaries (0 keeps utterances whole)",
			Category:    "Segmenter",
			Sources:     cli.EnvVars("STORYWEAVER_SEGMENT_MAX_CHARS"),
			Destination: &p.maxChars,
		},
	}
	flags = append(flags, p.app.Flags()...)
	flags = append(flags, p.repository.Flags()...)
	flags = append(flags, p.gemini.Flags()...)
	flags = append(flags, p.embedding.Flags()...)
	flags = append(flags, p.generation.Flags()...)
	flags = append(flags, p.archive.Flags()...)
	return flags
}

// pipeline holds the wired use cases and the resources to release afterwards
type pipeline struct {
	UseCases *usecase.UseCases
	Metrics  *observability.Metrics
	closers  []func()
}

// Close waits for background work and releases resources in reverse order
func (p *pipeline) Close() {
	if p.UseCases != nil {
		p.UseCases.Wait()
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

func (p *pipelineConfig) build(ctx context.Context) (_ *pipeline, err error) {
	logger := logging.Default()
	result := &pipeline{Metrics: observability.NewMetrics()}
	defer func() {
		if err != nil {
			result.Close()
		}
	}()

	settings, err := p.app.Settings()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load app configuration")
	}
	settings.SchemaRepairAttempts = p.generation.SchemaRepairAttempts()

	genOpts, err := p.generation.Options()
	if err != nil {
		return nil, err
	}

	logger.Info("Pipeline configuration",
		slog.GroupAttrs("repository", p.repository.LogAttrs()...),
		slog.GroupAttrs("gemini", p.gemini.LogAttrs()...),
		slog.GroupAttrs("embedding", p.embedding.LogAttrs()...),
		slog.GroupAttrs("generation", p.generation.LogAttrs()...),
		slog.GroupAttrs("archive", p.archive.LogAttrs()...),
	)

	repo, err := p.repository.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}
	result.closers = append(result.closers, func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close repository", "error", err.Error())
		}
	})

	llmClient, err := p.gemini.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize generative model")
	}

	embedder, closeEmbedder, err := p.embedding.Configure(ctx, llmClient, p.repository.Dimension())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize embedder")
	}
	result.closers = append(result.closers, closeEmbedder)

	ucOpts := []usecase.Option{
		usecase.WithSettings(settings),
		usecase.WithMetrics(result.Metrics),
		usecase.WithGeneratorOptions(genOpts...),
		usecase.WithSegmenterOptions(segmenter.WithMaxChars(p.maxChars)),
	}
	if llmClient != nil {
		ucOpts = append(ucOpts, usecase.WithLLM(llmClient))
	} else {
		logger.Warn("Gemini project not configured, outline generation is disabled")
	}

	archive, err := p.archive.Configure(ctx)
	if err != nil {
		return nil, err
	}
	if archive != nil {
		var a interfaces.TranscriptArchive = archive
		ucOpts = append(ucOpts, usecase.WithArchive(a))
		result.closers = append(result.closers, func() {
			if err := archive.Close(); err != nil {
				logger.Error("failed to close transcript archive", "error", err.Error())
			}
		})
	}

	uc, err := usecase.New(repo, embedder, ucOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize use cases")
	}
	result.UseCases = uc

	return result, nil
}
