package interfaces

import (
	"context"

	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

// TranscriptArchive keeps a copy of each ingested transcript outside the segment store
type TranscriptArchive interface {
	Put(ctx context.Context, transcript *model.Transcript) error
}
