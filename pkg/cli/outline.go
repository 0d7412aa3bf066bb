package cli

import (
	"context"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type outlinePoint struct {
	Text        string   `json:"text"`
	SegmentIDs  []string `json:"segment_ids"`
	Unsupported bool     `json:"unsupported,omitempty"`
}

type outlineSection struct {
	Heading string         `json:"heading"`
	Points  []outlinePoint `json:"points"`
}

type outlineOutput struct {
	Title             string           `json:"title"`
	Sections          []outlineSection `json:"sections"`
	MissingSegmentIDs []string         `json:"missing_segment_ids"`
	DroppedIDs        []string         `json:"dropped_segment_ids"`
	Attempts          int              `json:"attempts"`
}

type analysisEntry struct {
	Title       string   `json:"title,omitempty"`
	Text        string   `json:"text"`
	Type        string   `json:"type,omitempty"`
	SegmentIDs  []string `json:"segment_ids"`
	Unsupported bool     `json:"unsupported,omitempty"`
}

type analysisOutput struct {
	Topics            []analysisEntry `json:"topics"`
	KeyMoments        []analysisEntry `json:"key_moments"`
	KeyTerms          []analysisEntry `json:"key_terms"`
	MissingSegmentIDs []string        `json:"missing_segment_ids"`
	DroppedIDs        []string        `json:"dropped_segment_ids"`
	Attempts          int             `json:"attempts"`
}

func idStrings(ids []model.SegmentID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func toOutlineOutput(o *model.Outline) outlineOutput {
	out := outlineOutput{
		Title:    o.Title,
		Sections: make([]outlineSection, len(o.Sections)),
	}
	for i, sec := range o.Sections {
		points := make([]outlinePoint, len(sec.Points))
		for j, pt := range sec.Points {
			points[j] = outlinePoint{
				Text:        pt.Text,
				SegmentIDs:  idStrings(pt.SegmentIDs),
				Unsupported: pt.Unsupported,
			}
		}
		out.Sections[i] = outlineSection{Heading: sec.Heading, Points: points}
	}
	return out
}

func toAnalysisOutput(a *model.Analysis, missing []model.SegmentID, report model.RepairReport, attempts int) analysisOutput {
	out := analysisOutput{
		Topics:            make([]analysisEntry, len(a.Topics)),
		KeyMoments:        make([]analysisEntry, len(a.KeyMoments)),
		KeyTerms:          make([]analysisEntry, len(a.KeyTerms)),
		MissingSegmentIDs: idStrings(missing),
		DroppedIDs:        idStrings(report.DroppedIDs),
		Attempts:          attempts,
	}
	for i, t := range a.Topics {
		out.Topics[i] = analysisEntry{Title: t.Title, Text: t.Description, SegmentIDs: idStrings(t.SegmentIDs), Unsupported: t.Unsupported}
	}
	for i, m := range a.KeyMoments {
		out.KeyMoments[i] = analysisEntry{Text: m.Description, Type: string(m.Type), SegmentIDs: idStrings(m.SegmentIDs), Unsupported: m.Unsupported}
	}
	for i, k := range a.KeyTerms {
		out.KeyTerms[i] = analysisEntry{Title: k.Term, Text: k.Definition, SegmentIDs: idStrings(k.SegmentIDs), Unsupported: k.Unsupported}
	}
	return out
}

func cmdOutline(w io.Writer) *cli.Command {
	var owner string
	var segmentIDs []string
	var instruction string
	var analyze bool
	var pipelineCfg pipelineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "owner",
			Usage:       "Owner ID the segments belong to",
			Required:    true,
			Sources:     cli.EnvVars("STORYWEAVER_OWNER"),
			Destination: &owner,
		},
		&cli.StringSliceFlag{
			Name:        "segment",
			Aliases:     []string{"s"},
			Usage:       "Segment ID to ground the outline on (repeatable)",
			Required:    true,
			Destination: &segmentIDs,
		},
		&cli.StringFlag{
			Name:        "instruction",
			Usage:       "Override the outline instruction",
			Destination: &instruction,
		},
		&cli.BoolFlag{
			Name:        "analyze",
			Usage:       "Extract topics, action items and key moments instead of an outline",
			Destination: &analyze,
		},
	}
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:    "outline",
		Aliases: []string{"o"},
		Usage:   "Generate a grounded outline from stored segments",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			p, err := pipelineCfg.build(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			ids := make([]model.SegmentID, len(segmentIDs))
			for i, id := range segmentIDs {
				ids[i] = model.SegmentID(id)
			}

			if analyze {
				result, err := p.UseCases.Outline.Analyze(ctx, owner, ids)
				if err != nil {
					return goerr.Wrap(err, "failed to analyze segments")
				}
				logging.Default().Info("Analysis generated", "attempts", result.Attempts, "repair", result.Report)
				return writeJSON(w, toAnalysisOutput(result.Analysis, result.Missing, result.Report, result.Attempts))
			}

			result, err := p.UseCases.Outline.Generate(ctx, owner, ids, instruction)
			if err != nil {
				return goerr.Wrap(err, "failed to generate outline")
			}
			logging.Default().Info("Outline generated", "attempts", result.Attempts, "repair", result.Report)

			out := toOutlineOutput(result.Outline)
			out.MissingSegmentIDs = idStrings(result.Missing)
			out.DroppedIDs = idStrings(result.Report.DroppedIDs)
			out.Attempts = result.Attempts
			return writeJSON(w, out)
		},
	}
}
