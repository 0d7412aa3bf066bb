package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
)

// Cached wraps an embedder with a content-addressed cache.
// Cache failures are logged and bypassed; only the wrapped embedder can fail a call.
type Cached struct {
	embedder  interfaces.Embedder
	cache     interfaces.EmbeddingCache
	namespace string
}

var _ interfaces.Embedder = &Cached{}

// NewCached creates a caching embedder. namespace identifies the model version so that
// vectors from different models never share keys.
func NewCached(embedder interfaces.Embedder, cache interfaces.EmbeddingCache, namespace string) *Cached {
	return &Cached{
		embedder:  embedder,
		cache:     cache,
		namespace: namespace + ":" + strconv.Itoa(embedder.Dimension()),
	}
}

func (c *Cached) Dimension() int { return c.embedder.Dimension() }

// ContentKey returns the cache key of text
func (c *Cached) ContentKey(text string) string {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.ContentKey(text)
	}

	results := make([][]float32, len(texts))
	cached, err := c.cache.GetMany(ctx, keys)
	if err != nil {
		logging.From(ctx).Warn("embedding cache lookup failed", slog.Any("error", err))
	} else if len(cached) == len(keys) {
		for i, v := range cached {
			if len(v) == c.embedder.Dimension() {
				results[i] = v
			}
		}
	}

	// Embed each distinct uncached text once
	var missTexts, missKeys []string
	missIndex := make(map[string][]int)
	for i, v := range results {
		if v != nil {
			continue
		}
		if _, seen := missIndex[keys[i]]; !seen {
			missTexts = append(missTexts, texts[i])
			missKeys = append(missKeys, keys[i])
		}
		missIndex[keys[i]] = append(missIndex[keys[i]], i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	vectors, err := c.embedder.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed uncached texts", goerr.V("misses", len(missTexts)))
	}
	for i, key := range missKeys {
		for _, idx := range missIndex[key] {
			results[idx] = vectors[i]
		}
	}

	if err := c.cache.PutMany(ctx, missKeys, vectors); err != nil {
		logging.From(ctx).Warn("embedding cache store failed", slog.Any("error", err))
	}

	return results, nil
}
