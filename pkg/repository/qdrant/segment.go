package qdrant

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/qdrant/go-client/qdrant"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

func toPoint(s *model.Segment) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(pointID(s.Owner, s.ID)),
		Vectors: qdrant.NewVectors(s.Embedding...),
		Payload: map[string]*qdrant.Value{
			"segment_id":    qdrant.NewValueString(string(s.ID)),
			"transcript_id": qdrant.NewValueString(string(s.TranscriptID)),
			ownerField:      qdrant.NewValueString(s.Owner),
			"position":      qdrant.NewValueInt(int64(s.Position)),
			"text":          qdrant.NewValueString(s.Text),
			"speaker":       qdrant.NewValueString(s.Speaker),
			"start_time":    qdrant.NewValueDouble(s.StartTime),
			"end_time":      qdrant.NewValueDouble(s.EndTime),
			"created_at":    qdrant.NewValueString(s.CreatedAt.Format(time.RFC3339Nano)),
			"updated_at":    qdrant.NewValueString(s.UpdatedAt.Format(time.RFC3339Nano)),
		},
	}
}

func fromPayload(payload map[string]*qdrant.Value, vectors *qdrant.VectorsOutput) *model.Segment {
	s := &model.Segment{
		ID:           model.SegmentID(payload["segment_id"].GetStringValue()),
		TranscriptID: model.TranscriptID(payload["transcript_id"].GetStringValue()),
		Owner:        payload[ownerField].GetStringValue(),
		Position:     int(payload["position"].GetIntegerValue()),
		Text:         payload["text"].GetStringValue(),
		Speaker:      payload["speaker"].GetStringValue(),
		StartTime:    payload["start_time"].GetDoubleValue(),
		EndTime:      payload["end_time"].GetDoubleValue(),
		Embedding:    vectors.GetVector().GetData(),
	}
	if t, err := time.Parse(time.RFC3339Nano, payload["created_at"].GetStringValue()); err == nil {
		s.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, payload["updated_at"].GetStringValue()); err == nil {
		s.UpdatedAt = t
	}
	return s
}

// retrieve fetches points by ID. Points owned by someone else are filtered out.
func (q *Qdrant) retrieve(ctx context.Context, owner string, ids []model.SegmentID) (map[model.SegmentID]*model.Segment, error) {
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(pointID(owner, id))
	}

	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, goerr.Wrap(unavailable(err), "failed to retrieve qdrant points", goerr.V("count", len(ids)))
	}

	result := make(map[model.SegmentID]*model.Segment, len(points))
	for _, p := range points {
		if p.GetPayload()[ownerField].GetStringValue() != owner {
			continue
		}
		seg := fromPayload(p.GetPayload(), p.GetVectors())
		result[seg.ID] = seg
	}
	return result, nil
}

func (q *Qdrant) Upsert(ctx context.Context, owner string, segments []*model.Segment) error {
	if owner == "" {
		return goerr.Wrap(model.ErrInvalidInput, "owner is required")
	}
	if len(segments) == 0 {
		return nil
	}

	ids := make([]model.SegmentID, len(segments))
	for i, seg := range segments {
		if err := seg.Validate(); err != nil {
			return goerr.Wrap(err, "invalid segment", goerr.V(model.IndexKey, i))
		}
		if seg.Owner != owner {
			return goerr.Wrap(model.ErrInvalidInput, "segment owner does not match",
				goerr.V(model.SegmentIDKey, seg.ID), goerr.V(model.OwnerKey, owner))
		}
		if len(seg.Embedding) != q.dimension {
			return goerr.Wrap(model.ErrDimensionMismatch, "embedding dimension does not match store",
				goerr.V(model.SegmentIDKey, seg.ID),
				goerr.V("expected", q.dimension),
				goerr.V("actual", len(seg.Embedding)))
		}
		ids[i] = seg.ID
	}

	existing, err := q.retrieve(ctx, owner, model.DistinctSegmentIDs(ids))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	points := make([]*qdrant.PointStruct, len(segments))
	for i, seg := range segments {
		stored := seg.Copy()
		if prev, ok := existing[seg.ID]; ok {
			stored.CreatedAt = prev.CreatedAt
		} else if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		stored.UpdatedAt = now
		points[i] = toPoint(stored)
	}

	// A single upsert request is applied as one operation
	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return goerr.Wrap(unavailable(err), "failed to upsert qdrant points",
			goerr.V(model.OwnerKey, owner), goerr.V("count", len(points)))
	}
	return nil
}

func (q *Qdrant) Get(ctx context.Context, owner string, id model.SegmentID) (*model.Segment, error) {
	found, err := q.retrieve(ctx, owner, []model.SegmentID{id})
	if err != nil {
		return nil, err
	}
	seg, ok := found[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "segment not found",
			goerr.V(model.SegmentIDKey, id), goerr.V(model.OwnerKey, owner))
	}
	return seg, nil
}

func (q *Qdrant) GetByIDs(ctx context.Context, owner string, ids []model.SegmentID) ([]*model.Segment, []model.SegmentID, error) {
	distinct := model.DistinctSegmentIDs(ids)
	found := make([]*model.Segment, 0, len(distinct))
	missing := make([]model.SegmentID, 0)
	if len(distinct) == 0 {
		return found, missing, nil
	}

	resolved, err := q.retrieve(ctx, owner, distinct)
	if err != nil {
		return nil, nil, err
	}

	for _, id := range distinct {
		if seg, ok := resolved[id]; ok {
			found = append(found, seg)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing, nil
}

func (q *Qdrant) Search(ctx context.Context, owner string, query []float32, topK int) ([]*model.ScoredSegment, error) {
	if len(query) != q.dimension {
		return nil, goerr.Wrap(model.ErrDimensionMismatch, "query dimension does not match store",
			goerr.V("expected", q.dimension), goerr.V("actual", len(query)))
	}
	if topK <= 0 {
		return []*model.ScoredSegment{}, nil
	}

	// extra neighbors settle ties cut at topK in original order
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(ownerField, owner)},
		},
		Limit:       qdrant.PtrOf(uint64(topK + searchOverfetch)),
		WithPayload: qdrant.NewWithPayload(true),
		WithVectors: qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, goerr.Wrap(unavailable(err), "failed to search qdrant points", goerr.V("top_k", topK))
	}

	results := make([]*model.ScoredSegment, 0, len(scored))
	for _, p := range scored {
		if p.GetPayload()[ownerField].GetStringValue() != owner {
			continue
		}
		results = append(results, &model.ScoredSegment{
			Segment: fromPayload(p.GetPayload(), p.GetVectors()),
			Score:   float64(p.GetScore()),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Segment.Before(results[j].Segment)
	})
	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}
