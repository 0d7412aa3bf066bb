package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/secmon-lab/storyweaver/pkg/utils/retry"
)

type SegmentUseCase struct {
	repo        interfaces.SegmentRepository
	embedder    interfaces.Embedder
	storePolicy retry.Policy
	defaultTopK int
	maxTopK     int
}

func NewSegmentUseCase(repo interfaces.SegmentRepository, embedder interfaces.Embedder, storePolicy retry.Policy, settings Settings) *SegmentUseCase {
	return &SegmentUseCase{
		repo:        repo,
		embedder:    embedder,
		storePolicy: storePolicy,
		defaultTopK: settings.DefaultTopK,
		maxTopK:     settings.MaxTopK,
	}
}

func withStoreRetry[T any](ctx context.Context, p retry.Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		logging.From(ctx).Warn("segment store unavailable, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err))
	}
	return retry.Do(ctx, p, func(ctx context.Context, _ int) (T, error) {
		return fn(ctx)
	})
}

// Get returns one segment of owner, or model.ErrNotFound
func (uc *SegmentUseCase) Get(ctx context.Context, owner string, id model.SegmentID) (*model.Segment, error) {
	if owner == "" || id == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "owner and segment ID are required")
	}
	seg, err := withStoreRetry(ctx, uc.storePolicy, "get", func(ctx context.Context) (*model.Segment, error) {
		return uc.repo.Get(ctx, owner, id)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get segment", goerr.V(model.OwnerKey, owner), goerr.V(model.SegmentIDKey, id))
	}
	return seg, nil
}

// TopK clamps a requested result count to the configured default and maximum
func (uc *SegmentUseCase) TopK(requested int) int {
	if requested <= 0 {
		return uc.defaultTopK
	}
	return min(requested, uc.maxTopK)
}

// Search embeds query and returns the most similar segments of owner
func (uc *SegmentUseCase) Search(ctx context.Context, owner, query string, topK int) ([]*model.ScoredSegment, error) {
	if owner == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "owner is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "query is required")
	}

	vector, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	k := uc.TopK(topK)
	hits, err := withStoreRetry(ctx, uc.storePolicy, "search", func(ctx context.Context) ([]*model.ScoredSegment, error) {
		return uc.repo.Search(ctx, owner, vector, k)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search segments", goerr.V(model.OwnerKey, owner), goerr.V("top_k", k))
	}
	return hits, nil
}

// Correction is an edit of a stored segment. A nil Speaker keeps the current speaker.
type Correction struct {
	Text    string
	Speaker *string
}

// Correct replaces the text of a stored segment, re-embeds it and writes it back under the same id
// so existing outline references keep resolving.
func (uc *SegmentUseCase) Correct(ctx context.Context, owner string, id model.SegmentID, c Correction) (*model.Segment, error) {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "corrected text is empty", goerr.V(model.SegmentIDKey, id))
	}

	current, err := uc.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	vector, err := uc.embedder.Embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed corrected text", goerr.V(model.SegmentIDKey, id))
	}

	updated := current.Copy()
	updated.Text = text
	if c.Speaker != nil {
		updated.Speaker = strings.TrimSpace(*c.Speaker)
	}
	updated.Embedding = vector

	if _, err := withStoreRetry(ctx, uc.storePolicy, "correct", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, uc.repo.Upsert(ctx, owner, []*model.Segment{updated})
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to store corrected segment", goerr.V(model.SegmentIDKey, id))
	}

	stored, err := uc.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	logging.From(ctx).Info("segment corrected", slog.String("segment_id", string(id)))
	return stored, nil
}
