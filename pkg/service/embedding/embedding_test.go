package embedding_test

import (
	"context"
	"errors"
	"math"
	"os"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/service/embedding"
	"github.com/secmon-lab/storyweaver/pkg/utils/testutil"
)

// fakeEmbeddings returns vectors whose first element encodes the text length
func fakeEmbeddings(calls *atomic.Int32) func(ctx context.Context, dim int, input []string) ([][]float64, error) {
	return func(ctx context.Context, dim int, input []string) ([][]float64, error) {
		calls.Add(1)
		out := make([][]float64, len(input))
		for i, text := range input {
			v := make([]float64, dim)
			v[0] = float64(len(text))
			out[i] = v
		}
		return out, nil
	}
}

func TestGemini_EmbedBatch(t *testing.T) {
	t.Run("preserves input order across batches", func(t *testing.T) {
		var calls atomic.Int32
		llm := &testutil.MockLLMClient{GenerateEmbeddingFn: fakeEmbeddings(&calls)}
		emb, err := embedding.NewGemini(llm, embedding.WithDimension(8), embedding.WithBatchSize(2))
		gt.NoError(t, err).Required()

		texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
		vectors, err := emb.EmbedBatch(t.Context(), texts)
		gt.NoError(t, err).Required()
		gt.Array(t, vectors).Length(5)
		for i, v := range vectors {
			gt.Array(t, v).Length(8)
			gt.Value(t, v[0]).Equal(float32(len(texts[i])))
		}
		gt.Value(t, calls.Load()).Equal(int32(3))
	})

	t.Run("blank input fails whole batch naming the index", func(t *testing.T) {
		var calls atomic.Int32
		llm := &testutil.MockLLMClient{GenerateEmbeddingFn: fakeEmbeddings(&calls)}
		emb, err := embedding.NewGemini(llm, embedding.WithDimension(8))
		gt.NoError(t, err).Required()

		_, err = emb.EmbedBatch(t.Context(), []string{"ok", " ", "fine"})
		gt.Error(t, err).Is(model.ErrEmbedding)
		gt.Value(t, calls.Load()).Equal(int32(0))
	})

	t.Run("backend failure is an embedding error", func(t *testing.T) {
		llm := &testutil.MockLLMClient{
			GenerateEmbeddingFn: func(ctx context.Context, dim int, input []string) ([][]float64, error) {
				return nil, errors.New("quota exceeded")
			},
		}
		emb, err := embedding.NewGemini(llm, embedding.WithDimension(8))
		gt.NoError(t, err).Required()

		_, err = emb.Embed(t.Context(), "hello")
		gt.Error(t, err).Is(model.ErrEmbedding)
	})

	t.Run("wrong dimension from backend is rejected", func(t *testing.T) {
		llm := &testutil.MockLLMClient{
			GenerateEmbeddingFn: func(ctx context.Context, dim int, input []string) ([][]float64, error) {
				return [][]float64{{1, 2, 3}}, nil
			},
		}
		emb, err := embedding.NewGemini(llm, embedding.WithDimension(8))
		gt.NoError(t, err).Required()

		_, err = emb.Embed(t.Context(), "hello")
		gt.Error(t, err).Is(model.ErrEmbedding)
	})

	t.Run("requires LLM client", func(t *testing.T) {
		_, err := embedding.NewGemini(nil)
		gt.Error(t, err)
	})
}

func TestHash(t *testing.T) {
	emb, err := embedding.NewHash(256)
	gt.NoError(t, err).Required()

	a1, err := emb.Embed(t.Context(), "Let's begin the meeting")
	gt.NoError(t, err).Required()
	a2, err := emb.Embed(t.Context(), "Let's begin the meeting")
	gt.NoError(t, err).Required()
	gt.Array(t, a1).Equal(a2)
	gt.Array(t, a1).Length(256)

	var norm float64
	for _, v := range a1 {
		norm += float64(v) * float64(v)
	}
	gt.Bool(t, math.Abs(norm-1) < 1e-5).True()

	similar, _ := emb.Embed(t.Context(), "begin the meeting now")
	unrelated, _ := emb.Embed(t.Context(), "quarterly revenue numbers")
	gt.Bool(t, dot(a1, similar) > dot(a1, unrelated)).True()

	_, err = emb.EmbedBatch(t.Context(), []string{"x", ""})
	gt.Error(t, err).Is(model.ErrEmbedding)

	_, err = embedding.NewHash(0)
	gt.Error(t, err)
}

func TestCached(t *testing.T) {
	t.Run("embeds misses once and serves hits from cache", func(t *testing.T) {
		var calls atomic.Int32
		llm := &testutil.MockLLMClient{GenerateEmbeddingFn: fakeEmbeddings(&calls)}
		inner, err := embedding.NewGemini(llm, embedding.WithDimension(4))
		gt.NoError(t, err).Required()

		cache := testutil.NewMemoryCache()
		emb := embedding.NewCached(inner, cache, "test-model")

		v1, err := emb.EmbedBatch(t.Context(), []string{"hello", "hi", "hello"})
		gt.NoError(t, err).Required()
		gt.Array(t, v1).Length(3)
		gt.Array(t, v1[0]).Equal(v1[2])
		gt.Value(t, cache.Len()).Equal(2)
		gt.Value(t, calls.Load()).Equal(int32(1))

		v2, err := emb.EmbedBatch(t.Context(), []string{"hi", "hello"})
		gt.NoError(t, err).Required()
		gt.Array(t, v2[0]).Equal(v1[1])
		gt.Value(t, calls.Load()).Equal(int32(1))
	})

	t.Run("cache failure falls through to embedder", func(t *testing.T) {
		inner, err := embedding.NewHash(16)
		gt.NoError(t, err).Required()
		cache := testutil.NewMemoryCache()
		cache.Err = errors.New("redis down")

		emb := embedding.NewCached(inner, cache, "hash")
		v, err := emb.Embed(t.Context(), "hello")
		gt.NoError(t, err).Required()
		gt.Array(t, v).Length(16)
	})

	t.Run("keys differ by namespace", func(t *testing.T) {
		inner, _ := embedding.NewHash(16)
		a := embedding.NewCached(inner, testutil.NewMemoryCache(), "model-a")
		b := embedding.NewCached(inner, testutil.NewMemoryCache(), "model-b")
		gt.Value(t, a.ContentKey("x")).NotEqual(b.ContentKey("x"))
		gt.Value(t, a.ContentKey("x")).Equal(a.ContentKey("x"))
	})
}

func TestGemini_WithRealGemini(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT not set")
	}
	location := os.Getenv("TEST_GEMINI_LOCATION")
	if location == "" {
		t.Skip("TEST_GEMINI_LOCATION not set")
	}

	llmClient, err := gemini.New(t.Context(), projectID, location)
	gt.NoError(t, err).Required()

	emb, err := embedding.NewGemini(llmClient)
	gt.NoError(t, err).Required()

	vectors, err := emb.EmbedBatch(t.Context(), []string{"Hello", "Hi there", "Let's begin"})
	gt.NoError(t, err).Required()
	gt.Array(t, vectors).Length(3)
	for _, v := range vectors {
		gt.Array(t, v).Length(model.EmbeddingDimension)
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
