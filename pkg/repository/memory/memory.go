package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

// Memory is an in-process SegmentRepository used for development and tests
type Memory struct {
	mu        sync.RWMutex
	dimension int
	segments  map[string]map[model.SegmentID]*model.Segment // owner -> id -> segment
	now       func() time.Time
}

var _ interfaces.SegmentRepository = &Memory{}

// Option configures Memory
type Option func(*Memory)

// WithDimension sets the embedding dimension the store accepts
func WithDimension(dim int) Option {
	return func(m *Memory) {
		m.dimension = dim
	}
}

// WithClock replaces the time source used for CreatedAt / UpdatedAt
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// New creates an empty in-memory segment store
func New(opts ...Option) *Memory {
	m := &Memory{
		dimension: model.EmbeddingDimension,
		segments:  make(map[string]map[model.SegmentID]*model.Segment),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Dimension() int { return m.dimension }

func (m *Memory) Close() error { return nil }

func (m *Memory) Upsert(ctx context.Context, owner string, segments []*model.Segment) error {
	if owner == "" {
		return goerr.Wrap(model.ErrInvalidInput, "owner is required")
	}

	// Validate the whole batch before touching state so a failure leaves nothing written
	for i, seg := range segments {
		if err := seg.Validate(); err != nil {
			return goerr.Wrap(err, "invalid segment", goerr.V(model.IndexKey, i))
		}
		if seg.Owner != owner {
			return goerr.Wrap(model.ErrInvalidInput, "segment owner does not match",
				goerr.V(model.SegmentIDKey, seg.ID), goerr.V(model.OwnerKey, owner))
		}
		if len(seg.Embedding) != m.dimension {
			return goerr.Wrap(model.ErrDimensionMismatch, "embedding dimension does not match store",
				goerr.V(model.SegmentIDKey, seg.ID),
				goerr.V("expected", m.dimension),
				goerr.V("actual", len(seg.Embedding)))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.segments[owner]
	if !ok {
		bucket = make(map[model.SegmentID]*model.Segment)
		m.segments[owner] = bucket
	}

	now := m.now()
	for _, seg := range segments {
		stored := seg.Copy()
		if prev, exists := bucket[seg.ID]; exists {
			stored.CreatedAt = prev.CreatedAt
		} else if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		stored.UpdatedAt = now
		bucket[seg.ID] = stored
	}

	return nil
}

func (m *Memory) Get(ctx context.Context, owner string, id model.SegmentID) (*model.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seg, ok := m.segments[owner][id]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "segment not found",
			goerr.V(model.SegmentIDKey, id), goerr.V(model.OwnerKey, owner))
	}
	return seg.Copy(), nil
}

func (m *Memory) GetByIDs(ctx context.Context, owner string, ids []model.SegmentID) ([]*model.Segment, []model.SegmentID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := make([]*model.Segment, 0, len(ids))
	missing := make([]model.SegmentID, 0)
	bucket := m.segments[owner]

	for _, id := range model.DistinctSegmentIDs(ids) {
		if seg, ok := bucket[id]; ok {
			found = append(found, seg.Copy())
		} else {
			missing = append(missing, id)
		}
	}

	return found, missing, nil
}

func (m *Memory) Search(ctx context.Context, owner string, query []float32, topK int) ([]*model.ScoredSegment, error) {
	if len(query) != m.dimension {
		return nil, goerr.Wrap(model.ErrDimensionMismatch, "query dimension does not match store",
			goerr.V("expected", m.dimension), goerr.V("actual", len(query)))
	}
	if topK <= 0 {
		return []*model.ScoredSegment{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket := m.segments[owner]
	candidates := make([]*model.ScoredSegment, 0, len(bucket))
	for _, seg := range bucket {
		if len(seg.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, &model.ScoredSegment{
			Segment: seg.Copy(),
			Score:   cosineSimilarity(query, seg.Embedding),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Segment.Before(candidates[j].Segment)
	})

	if topK < len(candidates) {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
