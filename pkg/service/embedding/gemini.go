package embedding

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize   = 100
	defaultConcurrency = 4
)

// Gemini generates embeddings through a gollem LLM client
type Gemini struct {
	llmClient   gollem.LLMClient
	dimension   int
	batchSize   int
	concurrency int
}

var _ interfaces.Embedder = &Gemini{}

// GeminiOption configures Gemini
type GeminiOption func(*Gemini)

// WithDimension sets the requested output dimension
func WithDimension(dim int) GeminiOption {
	return func(g *Gemini) {
		g.dimension = dim
	}
}

// WithBatchSize sets how many texts are sent per embedding request
func WithBatchSize(n int) GeminiOption {
	return func(g *Gemini) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// WithConcurrency sets how many embedding requests run in parallel
func WithConcurrency(n int) GeminiOption {
	return func(g *Gemini) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// NewGemini creates an embedder with the provided LLM client
func NewGemini(llmClient gollem.LLMClient, opts ...GeminiOption) (*Gemini, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	g := &Gemini{
		llmClient:   llmClient,
		dimension:   model.EmbeddingDimension,
		batchSize:   defaultBatchSize,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.dimension <= 0 {
		return nil, goerr.New("embedding dimension must be positive", goerr.V("dimension", g.dimension))
	}

	return g, nil
}

func (g *Gemini) Dimension() int { return g.dimension }

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch splits texts into request batches and runs them concurrently.
// Output order always equals input order.
func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	results := make([][]float32, len(texts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))
		eg.Go(func() error {
			vectors, err := g.generate(ctx, texts[start:end])
			if err != nil {
				return goerr.Wrap(err, "embedding batch failed",
					goerr.V("index_from", start),
					goerr.V("index_to", end-1))
			}
			copy(results[start:end], vectors)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (g *Gemini) generate(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := g.llmClient.GenerateEmbedding(ctx, g.dimension, texts)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrEmbedding, err), "failed to generate embedding")
	}
	if len(embeddings) != len(texts) {
		return nil, goerr.Wrap(model.ErrEmbedding, "embedding count does not match input",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(embeddings)))
	}

	vectors := make([][]float32, len(embeddings))
	for i, emb := range embeddings {
		if len(emb) != g.dimension {
			return nil, goerr.Wrap(model.ErrEmbedding, "embedding has unexpected dimension",
				goerr.V(model.IndexKey, i),
				goerr.V("expected", g.dimension),
				goerr.V("actual", len(emb)))
		}
		// Convert float64 to float32
		v := make([]float32, len(emb))
		for j, x := range emb {
			v[j] = float32(x)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// validateTexts rejects blank inputs up front so the failing index is exact
func validateTexts(texts []string) error {
	if len(texts) == 0 {
		return goerr.Wrap(model.ErrEmbedding, "no texts to embed")
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return goerr.Wrap(model.ErrEmbedding, "text to embed is empty", goerr.V(model.IndexKey, i))
		}
	}
	return nil
}
