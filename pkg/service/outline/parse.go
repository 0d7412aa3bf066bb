package outline

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

type llmOutline struct {
	Title    string        `json:"title"`
	Sections *[]llmSection `json:"sections"`
}

type llmSection struct {
	Heading string     `json:"heading"`
	Points  []llmPoint `json:"points"`
}

type llmPoint struct {
	Text       string   `json:"text"`
	SegmentIDs []string `json:"segment_ids"`
}

type llmAnalysis struct {
	Topics []struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		SegmentIDs  []string `json:"segment_ids"`
	} `json:"topics"`
	KeyMoments []struct {
		Description string   `json:"description"`
		Type        string   `json:"type"`
		SegmentIDs  []string `json:"segment_ids"`
	} `json:"key_moments"`
	KeyTerms []struct {
		Term       string   `json:"term"`
		Definition string   `json:"definition"`
		SegmentIDs []string `json:"segment_ids"`
	} `json:"key_terms"`
}

// stripCodeFence removes a surrounding ```json ... ``` block some models add despite JSON mode
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func decodeStrict(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(stripCodeFence(raw))))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return goerr.New("trailing data after JSON object")
	}
	return nil
}

// normalizeID accepts both bare ids and ids copied with their citation tag
func normalizeID(s string) model.SegmentID {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimPrefix(s, "segment:")
	return model.SegmentID(strings.TrimSpace(s))
}

func normalizeIDs(ids []string) []model.SegmentID {
	out := make([]model.SegmentID, 0, len(ids))
	for _, id := range ids {
		out = append(out, normalizeID(id))
	}
	return model.DistinctSegmentIDs(out)
}

// ParseOutline decodes raw model output into an Outline. References are not checked.
func ParseOutline(raw string) (*model.Outline, error) {
	var resp llmOutline
	if err := decodeStrict(raw, &resp); err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrSchema, err), "failed to parse outline", goerr.V("response", raw))
	}
	if resp.Sections == nil {
		return nil, goerr.Wrap(model.ErrSchema, "outline has no sections field", goerr.V("response", raw))
	}

	outline := &model.Outline{Title: strings.TrimSpace(resp.Title)}
	for _, sec := range *resp.Sections {
		section := model.Section{Heading: strings.TrimSpace(sec.Heading)}
		for _, pt := range sec.Points {
			section.Points = append(section.Points, model.Point{
				Text:       strings.TrimSpace(pt.Text),
				SegmentIDs: normalizeIDs(pt.SegmentIDs),
			})
		}
		outline.Sections = append(outline.Sections, section)
	}
	return outline, nil
}

// ParseAnalysis decodes raw model output into an Analysis. References are not checked.
func ParseAnalysis(raw string) (*model.Analysis, error) {
	var resp llmAnalysis
	if err := decodeStrict(raw, &resp); err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrSchema, err), "failed to parse analysis", goerr.V("response", raw))
	}

	analysis := &model.Analysis{}
	for _, t := range resp.Topics {
		analysis.Topics = append(analysis.Topics, model.Topic{
			Title:       strings.TrimSpace(t.Title),
			Description: strings.TrimSpace(t.Description),
			SegmentIDs:  normalizeIDs(t.SegmentIDs),
		})
	}
	for _, m := range resp.KeyMoments {
		analysis.KeyMoments = append(analysis.KeyMoments, model.KeyMoment{
			Description: strings.TrimSpace(m.Description),
			Type:        model.NormalizeKeyMomentType(strings.ToLower(strings.TrimSpace(m.Type))),
			SegmentIDs:  normalizeIDs(m.SegmentIDs),
		})
	}
	for _, k := range resp.KeyTerms {
		analysis.KeyTerms = append(analysis.KeyTerms, model.KeyTerm{
			Term:       strings.TrimSpace(k.Term),
			Definition: strings.TrimSpace(k.Definition),
			SegmentIDs: normalizeIDs(k.SegmentIDs),
		})
	}
	return analysis, nil
}
