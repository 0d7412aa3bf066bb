package generator

import (
	"fmt"
	"strings"

	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

// CitationTag is the textual marker pairing a segment's text with its identifier in prompts
func CitationTag(id model.SegmentID) string {
	return "[segment:" + string(id) + "]"
}

const citationRules = `## Citation rules

- Every segment below starts with its identifier in the form [segment:<id>].
- Every item you generate MUST list in "segment_ids" the identifiers of the segments that support it.
- Copy identifiers exactly as written, without the "[segment:" prefix and "]" suffix.
- Never invent identifiers. Cite only identifiers that appear below.
`

// BuildPrompt assembles the user prompt: instruction, citation rules and the tagged segments
func BuildPrompt(req Request, segments []*model.Segment) string {
	var sb strings.Builder

	instruction := req.Instruction
	if instruction == "" {
		instruction = req.Task.Instruction
	}
	sb.WriteString(instruction)
	sb.WriteString("\n\n")
	sb.WriteString(citationRules)
	sb.WriteString("\n## Transcript segments\n\n")

	for _, seg := range segments {
		fmt.Fprintf(&sb, "%s %s (%.1fs-%.1fs): %s\n",
			CitationTag(seg.ID), seg.SpeakerLabel(), seg.StartTime, seg.EndTime, seg.Text)
	}

	if req.RepairHint != "" {
		sb.WriteString("\n## Previous response was rejected\n\n")
		sb.WriteString("Your previous response could not be parsed: ")
		sb.WriteString(req.RepairHint)
		sb.WriteString("\nReturn only a single JSON object that matches the response schema exactly.\n")
	}

	return sb.String()
}
