package generator

import (
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

// Task describes one kind of generation: its instructions and the JSON schema of its output
type Task struct {
	// Name labels metrics and logs, e.g. "outline"
	Name         string
	SystemPrompt string
	// Instruction is the default task instruction used when Request.Instruction is empty
	Instruction string
	Schema      *gollem.Parameter
}

// Request is the input of Generate
type Request struct {
	Owner      string
	SegmentIDs []model.SegmentID
	Task       Task

	// Instruction overrides Task.Instruction when set
	Instruction string

	// RepairHint carries the parse error of a previous attempt. When set the prompt asks
	// the model to return output that conforms to the schema.
	RepairHint string
}

// Result is the raw model output plus the segments it was grounded on
type Result struct {
	Raw      string
	Segments []*model.Segment
	Missing  []model.SegmentID
	Attempts int
}
