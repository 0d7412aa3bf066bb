package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/storyweaver/pkg/cli/config"
	"github.com/secmon-lab/storyweaver/pkg/utils/testutil"
)

func TestEmbedding_Configure(t *testing.T) {
	t.Run("hash backend works without LLM", func(t *testing.T) {
		cfg := config.NewEmbeddingForTest("hash", "")
		embedder, closer, err := cfg.Configure(t.Context(), nil, 32)
		gt.NoError(t, err).Required()
		defer closer()

		gt.Number(t, embedder.Dimension()).Equal(32)
		vec, err := embedder.Embed(t.Context(), "hello")
		gt.NoError(t, err)
		gt.Array(t, vec).Length(32)
	})

	t.Run("gemini backend requires LLM client", func(t *testing.T) {
		cfg := config.NewEmbeddingForTest("gemini", "")
		_, _, err := cfg.Configure(t.Context(), nil, 768)
		gt.Error(t, err).Is(config.ErrMissingRequired)
	})

	t.Run("gemini backend with LLM client", func(t *testing.T) {
		cfg := config.NewEmbeddingForTest("gemini", "")
		embedder, closer, err := cfg.Configure(t.Context(), &testutil.MockLLMClient{}, 768)
		gt.NoError(t, err).Required()
		defer closer()
		gt.Number(t, embedder.Dimension()).Equal(768)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.NewEmbeddingForTest("word2vec", "")
		_, _, err := cfg.Configure(t.Context(), nil, 768)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}
