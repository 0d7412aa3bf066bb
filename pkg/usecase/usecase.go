package usecase

import (
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/observability"
	"github.com/secmon-lab/storyweaver/pkg/service/generator"
	"github.com/secmon-lab/storyweaver/pkg/service/segmenter"
	"github.com/secmon-lab/storyweaver/pkg/utils/async"
	"github.com/secmon-lab/storyweaver/pkg/utils/retry"
)

// Settings are the tunables loaded from the app config file
type Settings struct {
	OutlineInstruction   string
	AnalysisInstruction  string
	DefaultTopK          int
	MaxTopK              int
	SchemaRepairAttempts int
}

// DefaultSettings returns the values used when no app config is given
func DefaultSettings() Settings {
	return Settings{
		DefaultTopK:          5,
		MaxTopK:              50,
		SchemaRepairAttempts: 1,
	}
}

type UseCases struct {
	repo          interfaces.SegmentRepository
	embedder      interfaces.Embedder
	llmClient     gollem.LLMClient
	archive       interfaces.TranscriptArchive
	metrics       *observability.Metrics
	settings      Settings
	segmenterOpts []segmenter.Option
	generatorOpts []generator.Option
	storePolicy   retry.Policy
	background    *async.Group

	Transcript *TranscriptUseCase
	Segment    *SegmentUseCase
	Outline    *OutlineUseCase
}

type Option func(*UseCases)

// WithLLM enables outline generation and analysis
func WithLLM(llmClient gollem.LLMClient) Option {
	return func(uc *UseCases) {
		uc.llmClient = llmClient
	}
}

// WithArchive stores every ingested transcript after the segments are written
func WithArchive(archive interfaces.TranscriptArchive) Option {
	return func(uc *UseCases) {
		uc.archive = archive
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(uc *UseCases) {
		uc.metrics = m
	}
}

func WithSettings(s Settings) Option {
	return func(uc *UseCases) {
		uc.settings = s
	}
}

func WithSegmenterOptions(opts ...segmenter.Option) Option {
	return func(uc *UseCases) {
		uc.segmenterOpts = append(uc.segmenterOpts, opts...)
	}
}

func WithGeneratorOptions(opts ...generator.Option) Option {
	return func(uc *UseCases) {
		uc.generatorOpts = append(uc.generatorOpts, opts...)
	}
}

// WithStoreRetry sets the backoff for segment store writes and reads
func WithStoreRetry(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return func(uc *UseCases) {
		uc.storePolicy.MaxAttempts = maxAttempts
		uc.storePolicy.BaseDelay = baseDelay
		uc.storePolicy.MaxDelay = maxDelay
		uc.generatorOpts = append(uc.generatorOpts, generator.WithStoreRetry(maxAttempts, baseDelay, maxDelay))
	}
}

// New wires the use cases. It fails with model.ErrDimensionMismatch when the embedder
// and the segment store disagree on vector length.
func New(repo interfaces.SegmentRepository, embedder interfaces.Embedder, opts ...Option) (*UseCases, error) {
	if repo == nil {
		return nil, goerr.New("segment repository is required")
	}
	if embedder == nil {
		return nil, goerr.New("embedder is required")
	}
	if embedder.Dimension() != repo.Dimension() {
		return nil, goerr.Wrap(model.ErrDimensionMismatch, "embedder and segment store dimensions differ",
			goerr.V("embedder", embedder.Dimension()),
			goerr.V("store", repo.Dimension()))
	}

	uc := &UseCases{
		repo:     repo,
		embedder: embedder,
		settings: DefaultSettings(),
		storePolicy: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Retryable:   func(err error) bool { return errors.Is(err, model.ErrStoreUnavailable) },
		},
		background: &async.Group{},
	}
	for _, opt := range opts {
		opt(uc)
	}

	if uc.settings.DefaultTopK <= 0 {
		uc.settings.DefaultTopK = DefaultSettings().DefaultTopK
	}
	if uc.settings.MaxTopK <= 0 {
		uc.settings.MaxTopK = DefaultSettings().MaxTopK
	}
	if uc.settings.SchemaRepairAttempts < 0 {
		uc.settings.SchemaRepairAttempts = 0
	}

	uc.Transcript = NewTranscriptUseCase(repo, embedder, segmenter.New(uc.segmenterOpts...),
		uc.storePolicy, uc.archive, uc.background, uc.metrics)
	uc.Segment = NewSegmentUseCase(repo, embedder, uc.storePolicy, uc.settings)

	uc.Outline = &OutlineUseCase{}
	if uc.llmClient != nil {
		gen, err := generator.New(uc.llmClient, repo,
			append([]generator.Option{generator.WithMetrics(uc.metrics)}, uc.generatorOpts...)...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create generator")
		}
		uc.Outline = NewOutlineUseCase(gen, uc.settings, uc.metrics)
	}

	return uc, nil
}

// Wait blocks until background work such as transcript archiving has finished
func (uc *UseCases) Wait() {
	uc.background.Wait()
}
