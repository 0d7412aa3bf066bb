package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

// Hash is a local embedder using signed feature hashing of unigrams and bigrams.
// It needs no network and no corpus preparation, which makes it suitable for development and tests.
type Hash struct {
	dimension int
}

var _ interfaces.Embedder = &Hash{}

// NewHash creates a feature hashing embedder with the given output dimension
func NewHash(dimension int) (*Hash, error) {
	if dimension <= 0 {
		return nil, goerr.New("embedding dimension must be positive", goerr.V("dimension", dimension))
	}
	return &Hash{dimension: dimension}, nil
}

func (h *Hash) Dimension() int { return h.dimension }

func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrEmbedding, "text to embed is empty")
	}
	return h.vectorize(text), nil
}

func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.vectorize(text)
	}
	return vectors, nil
}

func (h *Hash) vectorize(text string) []float32 {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)

	acc := make([]float64, h.dimension)
	add := func(feature string, weight float64) {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(feature))
		sum := hasher.Sum64()
		idx := int(sum % uint64(h.dimension))
		if sum&(1<<63) != 0 {
			weight = -weight
		}
		acc[idx] += weight
	}

	for i, tok := range tokens {
		add(tok, 1.0)
		if i > 0 {
			add(tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, h.dimension)
	if norm == 0 {
		// Punctuation-only text still gets a valid unit vector
		out[0] = 1
		return out
	}
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}
