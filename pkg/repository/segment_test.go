package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/repository/firestore"
	"github.com/secmon-lab/storyweaver/pkg/repository/memory"
	"github.com/secmon-lab/storyweaver/pkg/repository/qdrant"
)

// axisVector returns a unit vector mostly along axis with a small component along next
func axisVector(axis int, tilt float32) []float32 {
	v := make([]float32, model.EmbeddingDimension)
	v[axis%model.EmbeddingDimension] = 1
	v[(axis+1)%model.EmbeddingDimension] = tilt
	return v
}

func newSegment(owner string, transcriptID model.TranscriptID, pos int, text string, createdAt time.Time, embedding []float32) *model.Segment {
	return &model.Segment{
		ID:           model.NewSegmentID(),
		TranscriptID: transcriptID,
		Owner:        owner,
		Position:     pos,
		Text:         text,
		Speaker:      "A",
		StartTime:    float64(pos),
		EndTime:      float64(pos + 1),
		Embedding:    embedding,
		CreatedAt:    createdAt,
	}
}

func newOwner() string {
	return "owner-" + uuid.NewString()
}

func runSegmentRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.SegmentRepository) {
	t.Helper()

	t.Run("Upsert then Get returns stored segment", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()
		now := time.Now().UTC().Truncate(time.Millisecond)

		seg := newSegment(owner, model.NewTranscriptID(), 0, "Hello", now, axisVector(0, 0))
		gt.NoError(t, repo.Upsert(ctx, owner, []*model.Segment{seg})).Required()

		got, err := repo.Get(ctx, owner, seg.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ID).Equal(seg.ID)
		gt.Value(t, got.Owner).Equal(owner)
		gt.Value(t, got.Text).Equal("Hello")
		gt.Value(t, got.Speaker).Equal("A")
		gt.Value(t, got.StartTime).Equal(0.0)
		gt.Value(t, got.EndTime).Equal(1.0)
		gt.Value(t, got.TranscriptID).Equal(seg.TranscriptID)
		gt.Array(t, got.Embedding).Length(model.EmbeddingDimension)
		gt.Bool(t, got.CreatedAt.Equal(now)).True()
		gt.Bool(t, got.UpdatedAt.IsZero()).False()
	})

	t.Run("Get returns ErrNotFound for unknown id", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(context.Background(), newOwner(), model.NewSegmentID())
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("re-upsert with same id replaces content without duplication", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()
		now := time.Now().UTC().Truncate(time.Millisecond)

		seg := newSegment(owner, model.NewTranscriptID(), 0, "Helo", now, axisVector(3, 0))
		gt.NoError(t, repo.Upsert(ctx, owner, []*model.Segment{seg})).Required()

		corrected := seg.Copy()
		corrected.Text = "Hello"
		corrected.CreatedAt = now.Add(time.Hour)
		gt.NoError(t, repo.Upsert(ctx, owner, []*model.Segment{corrected})).Required()

		got, err := repo.Get(ctx, owner, seg.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Text).Equal("Hello")
		// original creation time keeps the segment's place in original order
		gt.Bool(t, got.CreatedAt.Equal(now)).True()

		results, err := repo.Search(ctx, owner, axisVector(3, 0), 10)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1)
	})

	t.Run("owners never see each other's segments", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		alice, bob := newOwner(), newOwner()
		now := time.Now().UTC()

		aliceSeg := newSegment(alice, model.NewTranscriptID(), 0, "alice secret", now, axisVector(5, 0))
		gt.NoError(t, repo.Upsert(ctx, alice, []*model.Segment{aliceSeg})).Required()

		_, err := repo.Get(ctx, bob, aliceSeg.ID)
		gt.Error(t, err).Is(model.ErrNotFound)

		found, missing, err := repo.GetByIDs(ctx, bob, []model.SegmentID{aliceSeg.ID})
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(0)
		gt.Array(t, missing).Equal([]model.SegmentID{aliceSeg.ID})

		results, err := repo.Search(ctx, bob, axisVector(5, 0), 10)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(0)

		// Bob writing the same id creates his own segment and leaves Alice's untouched
		bobSeg := aliceSeg.Copy()
		bobSeg.Owner = bob
		bobSeg.Text = "bob overwrite"
		gt.NoError(t, repo.Upsert(ctx, bob, []*model.Segment{bobSeg})).Required()

		got, err := repo.Get(ctx, alice, aliceSeg.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Text).Equal("alice secret")
	})

	t.Run("Upsert rejects segment of another owner", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()
		seg := newSegment(newOwner(), model.NewTranscriptID(), 0, "x", time.Now(), axisVector(0, 0))
		gt.Error(t, repo.Upsert(ctx, owner, []*model.Segment{seg})).Is(model.ErrInvalidInput)
	})

	t.Run("Upsert is all-or-nothing on invalid batch", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()
		tid := model.NewTranscriptID()
		good := newSegment(owner, tid, 0, "good", time.Now(), axisVector(7, 0))
		bad := newSegment(owner, tid, 1, "bad", time.Now(), []float32{1, 2, 3})

		err := repo.Upsert(ctx, owner, []*model.Segment{good, bad})
		gt.Error(t, err).Is(model.ErrDimensionMismatch)

		_, err = repo.Get(ctx, owner, good.ID)
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("GetByIDs tolerates missing ids", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()
		tid := model.NewTranscriptID()
		now := time.Now().UTC()

		s1 := newSegment(owner, tid, 0, "one", now, axisVector(10, 0))
		s2 := newSegment(owner, tid, 1, "two", now, axisVector(11, 0))
		gt.NoError(t, repo.Upsert(ctx, owner, []*model.Segment{s1, s2})).Required()

		unknown1, unknown2 := model.NewSegmentID(), model.NewSegmentID()
		found, missing, err := repo.GetByIDs(ctx, owner, []model.SegmentID{s2.ID, unknown1, s1.ID, unknown2, s2.ID})
		gt.NoError(t, err).Required()

		gt.Array(t, found).Length(2)
		gt.Value(t, found[0].ID).Equal(s2.ID)
		gt.Value(t, found[1].ID).Equal(s1.ID)
		gt.Array(t, missing).Equal([]model.SegmentID{unknown1, unknown2})
	})

	t.Run("malformed cited ids are missing, not failures", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()
		seg := newSegment(owner, model.NewTranscriptID(), 0, "real", time.Now().UTC(), axisVector(12, 0))
		gt.NoError(t, repo.Upsert(ctx, owner, []*model.Segment{seg})).Required()

		found, missing, err := repo.GetByIDs(ctx, owner, []model.SegmentID{"a/b", seg.ID, "__x__", ".."})
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(1)
		gt.Value(t, found[0].ID).Equal(seg.ID)
		gt.Array(t, missing).Equal([]model.SegmentID{"a/b", "__x__", ".."})

		_, err = repo.Get(ctx, owner, "a/b")
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("GetByIDs with no ids returns empty result", func(t *testing.T) {
		repo := newRepo(t)
		found, missing, err := repo.GetByIDs(context.Background(), newOwner(), nil)
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(0)
		gt.Array(t, missing).Length(0)
	})

	t.Run("Search orders by similarity and breaks ties by original order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()
		tid := model.NewTranscriptID()
		base := time.Now().UTC().Truncate(time.Millisecond)

		far := newSegment(owner, tid, 0, "far", base, axisVector(21, 0))
		tieLate := newSegment(owner, tid, 2, "tie late", base, axisVector(20, 0))
		tieEarly := newSegment(owner, tid, 1, "tie early", base, axisVector(20, 0))
		near := newSegment(owner, tid, 3, "near", base, axisVector(20, 0.1))
		gt.NoError(t, repo.Upsert(ctx, owner, []*model.Segment{far, tieLate, tieEarly, near})).Required()

		results, err := repo.Search(ctx, owner, axisVector(20, 0), 3)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(3)
		gt.Value(t, results[0].Segment.ID).Equal(tieEarly.ID)
		gt.Value(t, results[1].Segment.ID).Equal(tieLate.ID)
		gt.Value(t, results[2].Segment.ID).Equal(near.ID)
		gt.Bool(t, results[0].Score >= results[2].Score).True()
	})

	t.Run("Search keeps the earliest of ties cut by topK", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := newOwner()
		tid := model.NewTranscriptID()
		base := time.Now().UTC().Truncate(time.Millisecond)

		var tied []*model.Segment
		for pos := 4; pos >= 0; pos-- {
			tied = append(tied, newSegment(owner, tid, pos, "tie", base, axisVector(30, 0)))
		}
		gt.NoError(t, repo.Upsert(ctx, owner, tied)).Required()

		results, err := repo.Search(ctx, owner, axisVector(30, 0), 2)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2)
		gt.Number(t, results[0].Segment.Position).Equal(0)
		gt.Number(t, results[1].Segment.Position).Equal(1)
	})

	t.Run("Search rejects query of wrong dimension", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Search(context.Background(), newOwner(), []float32{1, 0}, 5)
		gt.Error(t, err).Is(model.ErrDimensionMismatch)
	})

	t.Run("Dimension reports configured dimension", func(t *testing.T) {
		repo := newRepo(t)
		gt.Value(t, repo.Dimension()).Equal(model.EmbeddingDimension)
	})
}

func newFirestoreSegmentRepository(t *testing.T) interfaces.SegmentRepository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix("test_"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newQdrantSegmentRepository(t *testing.T) interfaces.SegmentRepository {
	t.Helper()

	url := os.Getenv("TEST_QDRANT_URL")
	if url == "" {
		t.Skip("TEST_QDRANT_URL not set")
	}

	repo, err := qdrant.New(context.Background(), url, "storyweaver_test_segments",
		qdrant.WithAPIKey(os.Getenv("TEST_QDRANT_API_KEY")))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func TestMemorySegmentRepository(t *testing.T) {
	runSegmentRepositoryTest(t, func(t *testing.T) interfaces.SegmentRepository {
		return memory.New()
	})
}

func TestFirestoreSegmentRepository(t *testing.T) {
	runSegmentRepositoryTest(t, newFirestoreSegmentRepository)
}

func TestQdrantSegmentRepository(t *testing.T) {
	runSegmentRepositoryTest(t, newQdrantSegmentRepository)
}
