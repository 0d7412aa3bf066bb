package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// EmbeddingDimension is the default dimension of segment embeddings.
// Gemini text-embedding-004 uses 768 dimensions.
const EmbeddingDimension = 768

// SegmentID is a UUID-based identifier for Segment. It is assigned once at segmentation time.
type SegmentID string

// NewSegmentID generates a new UUID v4 SegmentID
func NewSegmentID() SegmentID {
	return SegmentID(uuid.New().String())
}

func (x SegmentID) String() string { return string(x) }

// TranscriptID identifies one ingest run
type TranscriptID string

// NewTranscriptID generates a new UUID v4 TranscriptID
func NewTranscriptID() TranscriptID {
	return TranscriptID(uuid.New().String())
}

// TranscriptItem is one utterance as delivered by the transcription provider
type TranscriptItem struct {
	Text      string
	Speaker   string // empty when the provider did not assign a speaker
	StartTime float64
	EndTime   float64
}

// Validate checks the item carries text and a sane time range
func (x TranscriptItem) Validate() error {
	if strings.TrimSpace(x.Text) == "" {
		return goerr.Wrap(ErrInvalidInput, "transcript item text is empty")
	}
	if x.StartTime < 0 || x.EndTime < 0 {
		return goerr.Wrap(ErrInvalidInput, "transcript item time is negative",
			goerr.V("start_time", x.StartTime), goerr.V("end_time", x.EndTime))
	}
	if x.StartTime > x.EndTime {
		return goerr.Wrap(ErrInvalidInput, "transcript item starts after it ends",
			goerr.V("start_time", x.StartTime), goerr.V("end_time", x.EndTime))
	}
	return nil
}

// Segment is a uniquely identified span of transcript text with speaker/time metadata and an embedding
type Segment struct {
	ID           SegmentID
	TranscriptID TranscriptID
	Owner        string
	Position     int // 0-based index within the transcript
	Text         string
	Speaker      string
	StartTime    float64
	EndTime      float64
	Embedding    []float32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks the invariants a stored segment must satisfy
func (s *Segment) Validate() error {
	if s.ID == "" {
		return goerr.Wrap(ErrInvalidInput, "segment ID is empty")
	}
	if s.Owner == "" {
		return goerr.Wrap(ErrInvalidInput, "segment owner is empty", goerr.V(SegmentIDKey, s.ID))
	}
	if strings.TrimSpace(s.Text) == "" {
		return goerr.Wrap(ErrInvalidInput, "segment text is empty", goerr.V(SegmentIDKey, s.ID))
	}
	if s.StartTime > s.EndTime {
		return goerr.Wrap(ErrInvalidInput, "segment starts after it ends",
			goerr.V(SegmentIDKey, s.ID),
			goerr.V("start_time", s.StartTime),
			goerr.V("end_time", s.EndTime))
	}
	return nil
}

// SpeakerLabel returns the speaker or a placeholder for unassigned speakers
func (s *Segment) SpeakerLabel() string {
	if s.Speaker == "" {
		return "Unknown"
	}
	return s.Speaker
}

// Before reports whether s precedes other in original segment order:
// ingest time first, then transcript, then position within the transcript.
func (s *Segment) Before(other *Segment) bool {
	if !s.CreatedAt.Equal(other.CreatedAt) {
		return s.CreatedAt.Before(other.CreatedAt)
	}
	if s.TranscriptID != other.TranscriptID {
		return s.TranscriptID < other.TranscriptID
	}
	if s.Position != other.Position {
		return s.Position < other.Position
	}
	return s.ID < other.ID
}

// Copy returns a deep copy of the segment
func (s *Segment) Copy() *Segment {
	copied := *s
	if s.Embedding != nil {
		copied.Embedding = make([]float32, len(s.Embedding))
		copy(copied.Embedding, s.Embedding)
	}
	return &copied
}

// ScoredSegment is a search hit. Higher Score means more similar.
type ScoredSegment struct {
	Segment *Segment
	Score   float64
}

// Transcript is the result of one ingest run
type Transcript struct {
	ID        TranscriptID
	Owner     string
	Segments  []*Segment
	CreatedAt time.Time
}

// Display renders the speaker-labeled transcript, one line per segment
func (t *Transcript) Display() string {
	var sb strings.Builder
	for i, seg := range t.Segments {
		if i > 0 {
			sb.WriteString("\n")
		}
		if seg.Speaker != "" {
			sb.WriteString(seg.Speaker)
			sb.WriteString(": ")
		}
		sb.WriteString(seg.Text)
	}
	return sb.String()
}
