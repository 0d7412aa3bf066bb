package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/observability"
	"github.com/secmon-lab/storyweaver/pkg/service/generator"
	"github.com/secmon-lab/storyweaver/pkg/service/outline"
	"github.com/secmon-lab/storyweaver/pkg/utils/errutil"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
)

const maxRepairHintLength = 500

// ErrGenerationDisabled is returned when no generative model is configured
var ErrGenerationDisabled = goerr.New("generative model is not configured")

// OutlineResult is a validated outline and what the validator changed
type OutlineResult struct {
	Outline *model.Outline
	Report  model.RepairReport
	// Missing lists requested ids that did not resolve
	Missing  []model.SegmentID
	Attempts int
}

// AnalysisResult is a validated analysis and what the validator changed
type AnalysisResult struct {
	Analysis *model.Analysis
	Report   model.RepairReport
	Missing  []model.SegmentID
	Attempts int
}

type OutlineUseCase struct {
	generator            *generator.Generator
	validator            *outline.Validator
	outlineInstruction   string
	analysisInstruction  string
	schemaRepairAttempts int
	metrics              *observability.Metrics
}

func NewOutlineUseCase(gen *generator.Generator, settings Settings, metrics *observability.Metrics) *OutlineUseCase {
	return &OutlineUseCase{
		generator:            gen,
		validator:            outline.New(gen),
		outlineInstruction:   settings.OutlineInstruction,
		analysisInstruction:  settings.AnalysisInstruction,
		schemaRepairAttempts: settings.SchemaRepairAttempts,
		metrics:              metrics,
	}
}

func (uc *OutlineUseCase) observe(op string, err error) {
	status := "success"
	if err != nil {
		status = string(errutil.Classify(err).Kind)
	}
	uc.metrics.ObserveRequest(op, status)
}

func repairHint(err error) string {
	msg := err.Error()
	if len(msg) > maxRepairHintLength {
		msg = msg[:maxRepairHintLength]
	}
	return msg
}

// generate runs generation and validation, retrying with a repair prompt while the output
// cannot be parsed. Each repair is a fresh generation.
func (uc *OutlineUseCase) generate(ctx context.Context, req generator.Request, validate func(raw string) (model.RepairReport, error)) (*generator.Result, model.RepairReport, int, error) {
	total := 0
	for attempt := 0; ; attempt++ {
		result, err := uc.generator.Generate(ctx, req)
		if err != nil {
			return nil, model.RepairReport{}, total, err
		}
		total += result.Attempts

		report, err := validate(result.Raw)
		if err == nil {
			return result, report, total, nil
		}
		if !errors.Is(err, model.ErrSchema) || attempt >= uc.schemaRepairAttempts {
			return nil, report, total, err
		}

		logging.From(ctx).Warn("model output did not match schema, regenerating with repair prompt",
			slog.String("task", req.Task.Name),
			slog.Int("repair_attempt", attempt+1),
			slog.Any("error", err))
		req.RepairHint = repairHint(err)
	}
}

// Generate builds a validated outline from the segments of owner identified by ids
func (uc *OutlineUseCase) Generate(ctx context.Context, owner string, ids []model.SegmentID, instruction string) (*OutlineResult, error) {
	if uc.generator == nil {
		return nil, ErrGenerationDisabled
	}
	if instruction == "" {
		instruction = uc.outlineInstruction
	}
	task := outline.OutlineTask(instruction)

	var validated *model.Outline
	result, report, attempts, err := uc.generate(ctx,
		generator.Request{Owner: owner, SegmentIDs: ids, Task: task},
		func(raw string) (model.RepairReport, error) {
			o, report, err := uc.validator.ValidateOutline(ctx, raw, owner)
			validated = o
			return report, err
		})
	uc.metrics.ObserveRepair(task.Name, report)
	uc.observe(task.Name, err)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate outline",
			goerr.V(model.OwnerKey, owner),
			goerr.V("segments", len(ids)))
	}

	return &OutlineResult{
		Outline:  validated,
		Report:   report,
		Missing:  result.Missing,
		Attempts: attempts,
	}, nil
}

// Analyze extracts topics, key moments and key terms from the segments of owner identified by ids
func (uc *OutlineUseCase) Analyze(ctx context.Context, owner string, ids []model.SegmentID) (*AnalysisResult, error) {
	if uc.generator == nil {
		return nil, ErrGenerationDisabled
	}
	task := outline.AnalysisTask(uc.analysisInstruction)

	var validated *model.Analysis
	result, report, attempts, err := uc.generate(ctx,
		generator.Request{Owner: owner, SegmentIDs: ids, Task: task},
		func(raw string) (model.RepairReport, error) {
			a, report, err := uc.validator.ValidateAnalysis(ctx, raw, owner)
			validated = a
			return report, err
		})
	uc.metrics.ObserveRepair(task.Name, report)
	uc.observe(task.Name, err)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to analyze transcript",
			goerr.V(model.OwnerKey, owner),
			goerr.V("segments", len(ids)))
	}

	return &AnalysisResult{
		Analysis: validated,
		Report:   report,
		Missing:  result.Missing,
		Attempts: attempts,
	}, nil
}
