package gcs

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/utils/safe"
)

// Archive writes each ingested transcript to a bucket as a JSON object
// under <prefix>/<owner>/<transcript_id>.json
type Archive struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.TranscriptArchive = &Archive{}

type Option func(*Archive)

func WithPrefix(prefix string) Option {
	return func(a *Archive) {
		a.prefix = prefix
	}
}

func New(ctx context.Context, bucket string, opts ...Option) (*Archive, error) {
	if bucket == "" {
		return nil, goerr.New("archive bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}

	a := &Archive{
		client: client,
		bucket: bucket,
		prefix: "transcripts",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type archivedSegment struct {
	ID        string  `json:"id"`
	Position  int     `json:"position"`
	Text      string  `json:"text"`
	Speaker   string  `json:"speaker,omitempty"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

type archivedTranscript struct {
	ID        string            `json:"id"`
	Owner     string            `json:"owner"`
	CreatedAt time.Time         `json:"created_at"`
	Display   string            `json:"display"`
	Segments  []archivedSegment `json:"segments"`
}

// ObjectName returns the object path a transcript is archived at
func (a *Archive) ObjectName(t *model.Transcript) string {
	return path.Join(a.prefix, t.Owner, string(t.ID)+".json")
}

// Encode renders t in the archived JSON form. Embeddings are not archived.
func Encode(t *model.Transcript) ([]byte, error) {
	doc := archivedTranscript{
		ID:        string(t.ID),
		Owner:     t.Owner,
		CreatedAt: t.CreatedAt,
		Display:   t.Display(),
		Segments:  make([]archivedSegment, 0, len(t.Segments)),
	}
	for _, seg := range t.Segments {
		doc.Segments = append(doc.Segments, archivedSegment{
			ID:        string(seg.ID),
			Position:  seg.Position,
			Text:      seg.Text,
			Speaker:   seg.Speaker,
			StartTime: seg.StartTime,
			EndTime:   seg.EndTime,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode transcript", goerr.V("transcript_id", t.ID))
	}
	return data, nil
}

func (a *Archive) Put(ctx context.Context, t *model.Transcript) error {
	data, err := Encode(t)
	if err != nil {
		return err
	}

	name := a.ObjectName(t)
	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		safe.Close(ctx, w)
		return goerr.Wrap(err, "failed to write transcript archive",
			goerr.V("bucket", a.bucket), goerr.V("object", name))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize transcript archive",
			goerr.V("bucket", a.bucket), goerr.V("object", name))
	}
	return nil
}

func (a *Archive) Close() error {
	return a.client.Close()
}
