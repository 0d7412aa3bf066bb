package outline

import (
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/storyweaver/pkg/service/generator"
)

// DefaultOutlineInstruction is used when neither the request nor the app config sets one
const DefaultOutlineInstruction = "Build a structured outline of the conversation below. Group related points into sections in the order they are discussed, and give the outline a short title."

// DefaultAnalysisInstruction is used when the app config does not set one
const DefaultAnalysisInstruction = "Analyze the conversation below. Identify its main topics, its key moments (decisions, questions and revelations) and the key terms a reader needs to know."

const outlineSystemPrompt = `You are an editor who turns conversation transcripts into structured outlines.

## Instructions:

1. Read every transcript segment. Each one is prefixed with its identifier.
2. Write an outline with a title and ordered sections. Each section has a heading and ordered points.
3. Each point is one claim, beat or idea from the conversation.
4. For each point, list in segment_ids the identifiers of the segments that support it.
5. Write in the same language as the transcript.
6. Respond with JSON only.
`

const analysisSystemPrompt = `You are an analyst who extracts structure from conversation transcripts.

## Instructions:

1. Read every transcript segment. Each one is prefixed with its identifier.
2. topics: the main themes or narrative beats, each with a title and a short description.
3. key_moments: decisions, questions or revelations. Set type to one of "decision", "question", "revelation", "other".
4. key_terms: terms or concepts a reader needs, each with a short definition.
5. For every item, list in segment_ids the identifiers of the segments that support it.
6. Write in the same language as the transcript.
7. Respond with JSON only.
`

func segmentIDsParameter() *gollem.Parameter {
	return &gollem.Parameter{
		Type:        gollem.TypeArray,
		Description: "Identifiers of the transcript segments supporting this item",
		Items:       &gollem.Parameter{Type: gollem.TypeString},
		Required:    true,
	}
}

// OutlineTask returns the generation task for outlines
func OutlineTask(instruction string) generator.Task {
	if instruction == "" {
		instruction = DefaultOutlineInstruction
	}
	return generator.Task{
		Name:         "outline",
		SystemPrompt: outlineSystemPrompt,
		Instruction:  instruction,
		Schema: &gollem.Parameter{
			Title:       "OutlineResponse",
			Description: "Structured outline of a conversation with segment citations",
			Type:        gollem.TypeObject,
			Properties: map[string]*gollem.Parameter{
				"title": {
					Type:        gollem.TypeString,
					Description: "Short title of the outline",
					Required:    true,
				},
				"sections": {
					Type:        gollem.TypeArray,
					Description: "Sections in presentation order",
					Required:    true,
					Items: &gollem.Parameter{
						Type: gollem.TypeObject,
						Properties: map[string]*gollem.Parameter{
							"heading": {
								Type:        gollem.TypeString,
								Description: "Section heading",
								Required:    true,
							},
							"points": {
								Type:        gollem.TypeArray,
								Description: "Points in presentation order",
								Required:    true,
								Items: &gollem.Parameter{
									Type: gollem.TypeObject,
									Properties: map[string]*gollem.Parameter{
										"text": {
											Type:        gollem.TypeString,
											Description: "The claim or beat",
											Required:    true,
										},
										"segment_ids": segmentIDsParameter(),
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

// AnalysisTask returns the generation task for transcript analysis
func AnalysisTask(instruction string) generator.Task {
	if instruction == "" {
		instruction = DefaultAnalysisInstruction
	}
	return generator.Task{
		Name:         "analysis",
		SystemPrompt: analysisSystemPrompt,
		Instruction:  instruction,
		Schema: &gollem.Parameter{
			Title:       "AnalysisResponse",
			Description: "Topics, key moments and key terms of a conversation with segment citations",
			Type:        gollem.TypeObject,
			Properties: map[string]*gollem.Parameter{
				"topics": {
					Type:     gollem.TypeArray,
					Required: true,
					Items: &gollem.Parameter{
						Type: gollem.TypeObject,
						Properties: map[string]*gollem.Parameter{
							"title":       {Type: gollem.TypeString, Required: true},
							"description": {Type: gollem.TypeString},
							"segment_ids": segmentIDsParameter(),
						},
					},
				},
				"key_moments": {
					Type:     gollem.TypeArray,
					Required: true,
					Items: &gollem.Parameter{
						Type: gollem.TypeObject,
						Properties: map[string]*gollem.Parameter{
							"description": {Type: gollem.TypeString, Required: true},
							"type": {
								Type:        gollem.TypeString,
								Description: `One of "decision", "question", "revelation", "other"`,
								Required:    true,
							},
							"segment_ids": segmentIDsParameter(),
						},
					},
				},
				"key_terms": {
					Type:     gollem.TypeArray,
					Required: true,
					Items: &gollem.Parameter{
						Type: gollem.TypeObject,
						Properties: map[string]*gollem.Parameter{
							"term":        {Type: gollem.TypeString, Required: true},
							"definition":  {Type: gollem.TypeString},
							"segment_ids": segmentIDsParameter(),
						},
					},
				},
			},
		},
	}
}
