package segmenter

import (
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

// Segmenter turns transcription items into identified segments.
// By default boundaries follow the provider's utterances one to one.
type Segmenter struct {
	maxChars int
	now      func() time.Time
	newID    func() model.SegmentID
}

type Option func(*Segmenter)

// WithMaxChars enables re-chunking of utterances longer than n characters at sentence
// boundaries. Chunk times are interpolated by character offset. 0 disables re-chunking.
func WithMaxChars(n int) Option {
	return func(s *Segmenter) {
		s.maxChars = n
	}
}

// WithClock replaces the time source for CreatedAt
func WithClock(now func() time.Time) Option {
	return func(s *Segmenter) {
		s.now = now
	}
}

// WithIDGenerator replaces the segment ID generator
func WithIDGenerator(gen func() model.SegmentID) Option {
	return func(s *Segmenter) {
		s.newID = gen
	}
}

func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		now:   func() time.Time { return time.Now().UTC() },
		newID: model.NewSegmentID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split validates items and returns a transcript whose segments keep input order and metadata.
// Embeddings are not set.
func (s *Segmenter) Split(owner string, items []model.TranscriptItem) (*model.Transcript, error) {
	if owner == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "owner is required")
	}
	if len(items) == 0 {
		return nil, goerr.Wrap(model.ErrEmptyTranscript, "no transcription items")
	}
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid transcription item", goerr.V(model.IndexKey, i))
		}
	}

	now := s.now()
	transcript := &model.Transcript{
		ID:        model.NewTranscriptID(),
		Owner:     owner,
		CreatedAt: now,
		Segments:  make([]*model.Segment, 0, len(items)),
	}

	for _, item := range items {
		for _, piece := range s.chunk(item) {
			transcript.Segments = append(transcript.Segments, &model.Segment{
				ID:           s.newID(),
				TranscriptID: transcript.ID,
				Owner:        owner,
				Position:     len(transcript.Segments),
				Text:         piece.Text,
				Speaker:      item.Speaker,
				StartTime:    piece.StartTime,
				EndTime:      piece.EndTime,
				CreatedAt:    now,
			})
		}
	}

	return transcript, nil
}

var sentenceEnd = regexp.MustCompile(`[.!?。！？]+["')\]]*\s+`)

// chunk splits one utterance. Each chunk belongs to the utterance's speaker, so chunks
// never span speakers.
func (s *Segmenter) chunk(item model.TranscriptItem) []model.TranscriptItem {
	text := strings.TrimSpace(item.Text)
	if s.maxChars <= 0 || len([]rune(text)) <= s.maxChars {
		item.Text = text
		return []model.TranscriptItem{item}
	}

	// Sentence spans as rune offsets
	runes := []rune(text)
	var bounds []int
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		bounds = append(bounds, len([]rune(text[:loc[1]])))
	}
	bounds = append(bounds, len(runes))

	var pieces [][2]int
	start, last := 0, 0
	for _, end := range bounds {
		if end-start > s.maxChars && last > start {
			pieces = append(pieces, [2]int{start, last})
			start = last
		}
		for end-start > s.maxChars {
			// A single sentence longer than the limit is cut at the limit
			pieces = append(pieces, [2]int{start, start + s.maxChars})
			start += s.maxChars
		}
		last = end
	}
	if start < len(runes) {
		pieces = append(pieces, [2]int{start, len(runes)})
	}

	duration := item.EndTime - item.StartTime
	total := float64(len(runes))
	out := make([]model.TranscriptItem, 0, len(pieces))
	for _, p := range pieces {
		piece := strings.TrimSpace(string(runes[p[0]:p[1]]))
		if piece == "" {
			continue
		}
		out = append(out, model.TranscriptItem{
			Text:      piece,
			Speaker:   item.Speaker,
			StartTime: item.StartTime + duration*float64(p[0])/total,
			EndTime:   item.StartTime + duration*float64(p[1])/total,
		})
	}
	return out
}
