package interfaces

import (
	"context"

	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

// SegmentRepository defines the interface for Segment persistence and retrieval.
// Every operation is scoped by owner; one owner can never read or overwrite another owner's segments.
type SegmentRepository interface {
	// Upsert writes segments with their embeddings. It is idempotent on segment ID and
	// all-or-nothing per call: on failure no segment of the batch is visible.
	Upsert(ctx context.Context, owner string, segments []*model.Segment) error

	// Get retrieves a segment by ID. Returns model.ErrNotFound when the owner has no such segment.
	Get(ctx context.Context, owner string, id model.SegmentID) (*model.Segment, error)

	// GetByIDs resolves ids in one batch. Unknown ids are reported in missing, never as an error.
	// found follows the order of ids; duplicate ids are resolved once.
	GetByIDs(ctx context.Context, owner string, ids []model.SegmentID) (found []*model.Segment, missing []model.SegmentID, err error)

	// Search returns up to topK segments by descending cosine similarity to query.
	// Ties are broken by original segment order.
	Search(ctx context.Context, owner string, query []float32, topK int) ([]*model.ScoredSegment, error)

	// Dimension returns the embedding dimension the collection is configured for
	Dimension() int

	// Close releases backend resources
	Close() error
}
