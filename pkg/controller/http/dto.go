package http

import (
	"time"

	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

type transcriptItemRequest struct {
	Text      string  `json:"text"`
	Speaker   string  `json:"speaker"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

type ingestRequest struct {
	Items []transcriptItemRequest `json:"items"`
}

type segmentResponse struct {
	ID           string    `json:"id"`
	TranscriptID string    `json:"transcript_id"`
	Position     int       `json:"position"`
	Text         string    `json:"text"`
	Speaker      string    `json:"speaker"`
	StartTime    float64   `json:"start_time"`
	EndTime      float64   `json:"end_time"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toSegmentResponse(s *model.Segment) segmentResponse {
	return segmentResponse{
		ID:           string(s.ID),
		TranscriptID: string(s.TranscriptID),
		Position:     s.Position,
		Text:         s.Text,
		Speaker:      s.Speaker,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

type ingestResponse struct {
	TranscriptID string            `json:"transcript_id"`
	Segments     []segmentResponse `json:"segments"`
	Display      string            `json:"display"`
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchHit struct {
	Segment segmentResponse `json:"segment"`
	Score   float64         `json:"score"`
}

type searchResponse struct {
	Results []searchHit `json:"results"`
}

type correctRequest struct {
	Text    string  `json:"text"`
	Speaker *string `json:"speaker"`
}

type generateRequest struct {
	SegmentIDs  []string `json:"segment_ids"`
	Instruction string   `json:"instruction"`
}

type analyzeRequest struct {
	SegmentIDs []string `json:"segment_ids"`
}

func toSegmentIDs(ids []string) []model.SegmentID {
	out := make([]model.SegmentID, len(ids))
	for i, id := range ids {
		out[i] = model.SegmentID(id)
	}
	return out
}

func fromSegmentIDs(ids []model.SegmentID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

type pointResponse struct {
	Text        string   `json:"text"`
	SegmentIDs  []string `json:"segment_ids"`
	Unsupported bool     `json:"unsupported"`
}

type sectionResponse struct {
	Heading string          `json:"heading"`
	Points  []pointResponse `json:"points"`
}

type outlineResponse struct {
	Title    string            `json:"title"`
	Sections []sectionResponse `json:"sections"`
}

func toOutlineResponse(o *model.Outline) outlineResponse {
	resp := outlineResponse{Title: o.Title, Sections: make([]sectionResponse, 0, len(o.Sections))}
	for _, sec := range o.Sections {
		s := sectionResponse{Heading: sec.Heading, Points: make([]pointResponse, 0, len(sec.Points))}
		for _, pt := range sec.Points {
			s.Points = append(s.Points, pointResponse{
				Text:        pt.Text,
				SegmentIDs:  fromSegmentIDs(pt.SegmentIDs),
				Unsupported: pt.Unsupported,
			})
		}
		resp.Sections = append(resp.Sections, s)
	}
	return resp
}

type repairResponse struct {
	ReferencesKept    int      `json:"references_kept"`
	ReferencesDropped int      `json:"references_dropped"`
	DroppedIDs        []string `json:"dropped_ids"`
	UnsupportedItems  int      `json:"unsupported_items"`
	ItemsDropped      int      `json:"items_dropped"`
	SectionsDropped   int      `json:"sections_dropped"`
}

func toRepairResponse(r model.RepairReport) repairResponse {
	return repairResponse{
		ReferencesKept:    r.ReferencesKept,
		ReferencesDropped: r.ReferencesDropped,
		DroppedIDs:        fromSegmentIDs(r.DroppedIDs),
		UnsupportedItems:  r.UnsupportedItems,
		ItemsDropped:      r.ItemsDropped,
		SectionsDropped:   r.SectionsDropped,
	}
}

type generateResponse struct {
	Outline           outlineResponse `json:"outline"`
	Repair            repairResponse  `json:"repair"`
	MissingSegmentIDs []string        `json:"missing_segment_ids"`
}

type topicResponse struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	SegmentIDs  []string `json:"segment_ids"`
	Unsupported bool     `json:"unsupported"`
}

type keyMomentResponse struct {
	Description string   `json:"description"`
	Type        string   `json:"type"`
	SegmentIDs  []string `json:"segment_ids"`
	Unsupported bool     `json:"unsupported"`
}

type keyTermResponse struct {
	Term        string   `json:"term"`
	Definition  string   `json:"definition"`
	SegmentIDs  []string `json:"segment_ids"`
	Unsupported bool     `json:"unsupported"`
}

type analysisResponse struct {
	Topics     []topicResponse     `json:"topics"`
	KeyMoments []keyMomentResponse `json:"key_moments"`
	KeyTerms   []keyTermResponse   `json:"key_terms"`
}

func toAnalysisResponse(a *model.Analysis) analysisResponse {
	resp := analysisResponse{
		Topics:     make([]topicResponse, 0, len(a.Topics)),
		KeyMoments: make([]keyMomentResponse, 0, len(a.KeyMoments)),
		KeyTerms:   make([]keyTermResponse, 0, len(a.KeyTerms)),
	}
	for _, t := range a.Topics {
		resp.Topics = append(resp.Topics, topicResponse{
			Title: t.Title, Description: t.Description,
			SegmentIDs: fromSegmentIDs(t.SegmentIDs), Unsupported: t.Unsupported,
		})
	}
	for _, m := range a.KeyMoments {
		resp.KeyMoments = append(resp.KeyMoments, keyMomentResponse{
			Description: m.Description, Type: string(m.Type),
			SegmentIDs: fromSegmentIDs(m.SegmentIDs), Unsupported: m.Unsupported,
		})
	}
	for _, k := range a.KeyTerms {
		resp.KeyTerms = append(resp.KeyTerms, keyTermResponse{
			Term: k.Term, Definition: k.Definition,
			SegmentIDs: fromSegmentIDs(k.SegmentIDs), Unsupported: k.Unsupported,
		})
	}
	return resp
}

type analyzeResponse struct {
	Analysis          analysisResponse `json:"analysis"`
	Repair            repairResponse   `json:"repair"`
	MissingSegmentIDs []string         `json:"missing_segment_ids"`
}
