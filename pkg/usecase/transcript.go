package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/observability"
	"github.com/secmon-lab/storyweaver/pkg/service/segmenter"
	"github.com/secmon-lab/storyweaver/pkg/utils/async"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/secmon-lab/storyweaver/pkg/utils/retry"
)

type TranscriptUseCase struct {
	repo        interfaces.SegmentRepository
	embedder    interfaces.Embedder
	segmenter   *segmenter.Segmenter
	storePolicy retry.Policy
	archive     interfaces.TranscriptArchive
	background  *async.Group
	metrics     *observability.Metrics
}

func NewTranscriptUseCase(
	repo interfaces.SegmentRepository,
	embedder interfaces.Embedder,
	seg *segmenter.Segmenter,
	storePolicy retry.Policy,
	archive interfaces.TranscriptArchive,
	background *async.Group,
	metrics *observability.Metrics,
) *TranscriptUseCase {
	if background == nil {
		background = &async.Group{}
	}
	return &TranscriptUseCase{
		repo:        repo,
		embedder:    embedder,
		segmenter:   seg,
		storePolicy: storePolicy,
		archive:     archive,
		background:  background,
		metrics:     metrics,
	}
}

// Ingest segments items, embeds every segment and writes the batch. Success is returned only
// after the whole batch is stored.
func (uc *TranscriptUseCase) Ingest(ctx context.Context, owner string, items []model.TranscriptItem) (*model.Transcript, error) {
	transcript, err := uc.segmenter.Split(owner, items)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to segment transcript", goerr.V(model.OwnerKey, owner))
	}

	texts := make([]string, len(transcript.Segments))
	for i, seg := range transcript.Segments {
		texts[i] = seg.Text
	}
	vectors, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed segments",
			goerr.V(model.OwnerKey, owner),
			goerr.V("transcript_id", transcript.ID))
	}
	for i, seg := range transcript.Segments {
		seg.Embedding = vectors[i]
	}

	if err := uc.upsert(ctx, owner, transcript.Segments); err != nil {
		return nil, goerr.Wrap(err, "failed to store segments",
			goerr.V(model.OwnerKey, owner),
			goerr.V("transcript_id", transcript.ID),
			goerr.V("segments", len(transcript.Segments)))
	}
	uc.metrics.ObserveIngest(len(transcript.Segments))

	logging.From(ctx).Info("transcript ingested",
		slog.String("transcript_id", string(transcript.ID)),
		slog.Int("segments", len(transcript.Segments)))

	if uc.archive != nil {
		archived := copyTranscript(transcript)
		uc.background.Dispatch(ctx, "archive_transcript", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if err := uc.archive.Put(ctx, archived); err != nil {
				return goerr.Wrap(err, "failed to archive transcript", goerr.V("transcript_id", archived.ID))
			}
			return nil
		})
	}

	return transcript, nil
}

func (uc *TranscriptUseCase) upsert(ctx context.Context, owner string, segments []*model.Segment) error {
	_, err := withStoreRetry(ctx, uc.storePolicy, "ingest", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, uc.repo.Upsert(ctx, owner, segments)
	})
	return err
}

func copyTranscript(t *model.Transcript) *model.Transcript {
	copied := *t
	copied.Segments = make([]*model.Segment, len(t.Segments))
	for i, seg := range t.Segments {
		copied.Segments[i] = seg.Copy()
	}
	return &copied
}
