package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/secmon-lab/storyweaver/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

type ingestItem struct {
	Text      string  `json:"text"`
	Speaker   string  `json:"speaker"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

type ingestFile struct {
	Items []ingestItem `json:"items"`
}

type ingestedSegment struct {
	ID        string  `json:"id"`
	Position  int     `json:"position"`
	Speaker   string  `json:"speaker"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

type ingestOutput struct {
	TranscriptID string            `json:"transcript_id"`
	Segments     []ingestedSegment `json:"segments"`
	Display      string            `json:"display"`
}

// readIngestFile reads a {"items": [...]} document from path, or stdin when path is "-"
func readIngestFile(path string) ([]model.TranscriptItem, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		// #nosec G304 - path is provided by CLI flag
		f, err := os.Open(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open transcript file", goerr.V("path", path))
		}
		defer safe.Close(context.Background(), f)
		r = f
	}

	var doc ingestFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrInvalidInput, err), "failed to decode transcript file", goerr.V("path", path))
	}

	items := make([]model.TranscriptItem, len(doc.Items))
	for i, item := range doc.Items {
		items[i] = model.TranscriptItem{
			Text:      item.Text,
			Speaker:   item.Speaker,
			StartTime: item.StartTime,
			EndTime:   item.EndTime,
		}
	}
	return items, nil
}

func cmdIngest(w io.Writer) *cli.Command {
	var owner string
	var input string
	var pipelineCfg pipelineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "owner",
			Usage:       "Owner ID the segments belong to",
			Required:    true,
			Sources:     cli.EnvVars("STORYWEAVER_OWNER"),
			Destination: &owner,
		},
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Transcript JSON file ({\"items\": [...]}), - for stdin",
			Value:       "-",
			Destination: &input,
		},
	}
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:    "ingest",
		Aliases: []string{"i"},
		Usage:   "Segment, embed and store a transcript",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			items, err := readIngestFile(input)
			if err != nil {
				return err
			}

			p, err := pipelineCfg.build(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			transcript, err := p.UseCases.Transcript.Ingest(ctx, owner, items)
			if err != nil {
				return goerr.Wrap(err, "failed to ingest transcript")
			}

			out := ingestOutput{
				TranscriptID: string(transcript.ID),
				Segments:     make([]ingestedSegment, len(transcript.Segments)),
				Display:      transcript.Display(),
			}
			for i, seg := range transcript.Segments {
				out.Segments[i] = ingestedSegment{
					ID:        string(seg.ID),
					Position:  seg.Position,
					Speaker:   seg.Speaker,
					StartTime: seg.StartTime,
					EndTime:   seg.EndTime,
					Text:      seg.Text,
				}
			}

			logging.Default().Info("Transcript ingested",
				"transcript_id", transcript.ID,
				"segments", len(transcript.Segments))
			return writeJSON(w, out)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to write output")
	}
	return nil
}
