package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// segmentDoc is the Firestore document representation of model.Segment.
// Embedding is stored as firestore.Vector32 for FindNearest vector search.
type segmentDoc struct {
	ID           model.SegmentID    `firestore:"ID"`
	TranscriptID model.TranscriptID `firestore:"TranscriptID"`
	Owner        string             `firestore:"Owner"`
	Position     int                `firestore:"Position"`
	Text         string             `firestore:"Text"`
	Speaker      string             `firestore:"Speaker"`
	StartTime    float64            `firestore:"StartTime"`
	EndTime      float64            `firestore:"EndTime"`
	Embedding    firestore.Vector32 `firestore:"Embedding,omitempty"`
	CreatedAt    time.Time          `firestore:"CreatedAt"`
	UpdatedAt    time.Time          `firestore:"UpdatedAt"`
}

func toSegmentDoc(s *model.Segment) *segmentDoc {
	doc := &segmentDoc{
		ID:           s.ID,
		TranscriptID: s.TranscriptID,
		Owner:        s.Owner,
		Position:     s.Position,
		Text:         s.Text,
		Speaker:      s.Speaker,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if len(s.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(s.Embedding)
	}
	return doc
}

func fromSegmentDoc(d *segmentDoc) *model.Segment {
	s := &model.Segment{
		ID:           d.ID,
		TranscriptID: d.TranscriptID,
		Owner:        d.Owner,
		Position:     d.Position,
		Text:         d.Text,
		Speaker:      d.Speaker,
		StartTime:    d.StartTime,
		EndTime:      d.EndTime,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if len(d.Embedding) > 0 {
		s.Embedding = []float32(d.Embedding)
	}
	return s
}

// Upsert writes all segments in one transaction. Existing documents keep their CreatedAt.
func (f *Firestore) Upsert(ctx context.Context, owner string, segments []*model.Segment) error {
	if err := validateOwner(owner); err != nil {
		return err
	}
	if len(segments) == 0 {
		return nil
	}

	for i, seg := range segments {
		if err := seg.Validate(); err != nil {
			return goerr.Wrap(err, "invalid segment", goerr.V(model.IndexKey, i))
		}
		if !validDocumentID(string(seg.ID)) {
			return goerr.Wrap(model.ErrInvalidInput, "segment ID is not a valid document ID", goerr.V(model.SegmentIDKey, seg.ID))
		}
		if seg.Owner != owner {
			return goerr.Wrap(model.ErrInvalidInput, "segment owner does not match",
				goerr.V(model.SegmentIDKey, seg.ID), goerr.V(model.OwnerKey, owner))
		}
		if len(seg.Embedding) != f.dimension {
			return goerr.Wrap(model.ErrDimensionMismatch, "embedding dimension does not match store",
				goerr.V(model.SegmentIDKey, seg.ID),
				goerr.V("expected", f.dimension),
				goerr.V("actual", len(seg.Embedding)))
		}
	}

	col := f.segments(owner)
	refs := make([]*firestore.DocumentRef, len(segments))
	for i, seg := range segments {
		refs[i] = col.Doc(string(seg.ID))
	}

	now := time.Now().UTC()
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return goerr.Wrap(err, "failed to read existing segments")
		}

		for i, seg := range segments {
			doc := toSegmentDoc(seg)
			if snaps[i].Exists() {
				var prev segmentDoc
				if err := snaps[i].DataTo(&prev); err != nil {
					return goerr.Wrap(err, "failed to unmarshal segment", goerr.V(model.SegmentIDKey, seg.ID))
				}
				doc.CreatedAt = prev.CreatedAt
			} else if doc.CreatedAt.IsZero() {
				doc.CreatedAt = now
			}
			doc.UpdatedAt = now

			if err := tx.Set(refs[i], doc); err != nil {
				return goerr.Wrap(err, "failed to set segment", goerr.V(model.SegmentIDKey, seg.ID))
			}
		}
		return nil
	})
	if err != nil {
		return goerr.Wrap(unavailable(err), "failed to upsert segments",
			goerr.V(model.OwnerKey, owner),
			goerr.V("count", len(segments)))
	}

	return nil
}

func (f *Firestore) Get(ctx context.Context, owner string, id model.SegmentID) (*model.Segment, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if !validDocumentID(string(id)) {
		return nil, goerr.Wrap(model.ErrNotFound, "segment not found", goerr.V(model.SegmentIDKey, id))
	}

	snap, err := f.segments(owner).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "segment not found",
				goerr.V(model.SegmentIDKey, id), goerr.V(model.OwnerKey, owner))
		}
		return nil, goerr.Wrap(unavailable(err), "failed to get segment", goerr.V(model.SegmentIDKey, id))
	}

	var d segmentDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal segment", goerr.V(model.SegmentIDKey, id))
	}

	return fromSegmentDoc(&d), nil
}

func (f *Firestore) GetByIDs(ctx context.Context, owner string, ids []model.SegmentID) ([]*model.Segment, []model.SegmentID, error) {
	if err := validateOwner(owner); err != nil {
		return nil, nil, err
	}

	distinct := model.DistinctSegmentIDs(ids)
	found := make([]*model.Segment, 0, len(distinct))
	missing := make([]model.SegmentID, 0)
	if len(distinct) == 0 {
		return found, missing, nil
	}

	// An id that cannot name a document cannot exist; it is missing, not a store failure
	col := f.segments(owner)
	lookup := make([]model.SegmentID, 0, len(distinct))
	refs := make([]*firestore.DocumentRef, 0, len(distinct))
	for _, id := range distinct {
		if validDocumentID(string(id)) {
			lookup = append(lookup, id)
			refs = append(refs, col.Doc(string(id)))
		}
	}

	byID := make(map[model.SegmentID]*model.Segment, len(refs))
	if len(refs) > 0 {
		snaps, err := f.client.GetAll(ctx, refs)
		if err != nil {
			return nil, nil, goerr.Wrap(unavailable(err), "failed to get segments",
				goerr.V(model.OwnerKey, owner),
				goerr.V("count", len(refs)))
		}
		for i, snap := range snaps {
			if !snap.Exists() {
				continue
			}
			var d segmentDoc
			if err := snap.DataTo(&d); err != nil {
				return nil, nil, goerr.Wrap(err, "failed to unmarshal segment", goerr.V(model.SegmentIDKey, lookup[i]))
			}
			byID[lookup[i]] = fromSegmentDoc(&d)
		}
	}

	for _, id := range distinct {
		if seg, ok := byID[id]; ok {
			found = append(found, seg)
		} else {
			missing = append(missing, id)
		}
	}

	return found, missing, nil
}

func (f *Firestore) Search(ctx context.Context, owner string, query []float32, topK int) ([]*model.ScoredSegment, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if len(query) != f.dimension {
		return nil, goerr.Wrap(model.ErrDimensionMismatch, "query dimension does not match store",
			goerr.V("expected", f.dimension), goerr.V("actual", len(query)))
	}
	if topK <= 0 {
		return []*model.ScoredSegment{}, nil
	}

	// Over-fetch so that equal scores straddling topK are ordered here, not by the backend
	limit := min(topK+searchOverfetch, maxFindNearestLimit)
	vq := f.segments(owner).FindNearest(embeddingField, firestore.Vector32(query), limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	results := make([]*model.ScoredSegment, 0, limit)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(unavailable(err), "failed to iterate segment vector search results")
		}

		var d segmentDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal segment from vector search")
		}

		// Cosine distance is 1 - cosine similarity
		var distance float64
		if v, ok := snap.Data()[distanceField].(float64); ok {
			distance = v
		}

		results = append(results, &model.ScoredSegment{
			Segment: fromSegmentDoc(&d),
			Score:   1 - distance,
		})
	}

	// FindNearest does not define an order between equal distances
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Segment.Before(results[j].Segment)
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}
