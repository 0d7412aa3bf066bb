package outline

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
)

// Resolver looks up segments by id for an owner. Missing ids are reported, not returned as errors.
type Resolver interface {
	Resolve(ctx context.Context, owner string, ids []model.SegmentID) ([]*model.Segment, []model.SegmentID, error)
}

// Validator parses generated output and makes every reference in it resolvable
type Validator struct {
	resolver Resolver
}

func New(resolver Resolver) *Validator {
	return &Validator{resolver: resolver}
}

func (v *Validator) known(ctx context.Context, owner string, ids []model.SegmentID) (KnownSet, error) {
	if len(ids) == 0 {
		return KnownSet{}, nil
	}
	found, _, err := v.resolver.Resolve(ctx, owner, ids)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve cited segments", goerr.V("cited", len(ids)))
	}
	return NewKnownSet(found), nil
}

// ValidateOutline parses raw, resolves every cited id in one batch for owner and repairs the outline.
// Points left without references stay in the outline marked unsupported; only an outline with
// no section left is rejected. The report is returned even when the outline is rejected.
func (v *Validator) ValidateOutline(ctx context.Context, raw, owner string) (*model.Outline, model.RepairReport, error) {
	parsed, err := ParseOutline(raw)
	if err != nil {
		return nil, model.RepairReport{}, err
	}

	known, err := v.known(ctx, owner, parsed.SegmentIDs())
	if err != nil {
		return nil, model.RepairReport{}, err
	}

	repaired, report := Reconcile(parsed, known)
	if report.ReferencesDropped > 0 {
		logging.From(ctx).Info("dropped unresolved references from outline",
			slog.Int("dropped", report.ReferencesDropped),
			slog.Any("dropped_ids", report.DroppedIDs),
			slog.Int("unsupported_points", report.UnsupportedItems))
	}

	if len(repaired.Sections) == 0 {
		return nil, report, goerr.Wrap(model.ErrNoValidSegments, "outline has no sections after repair",
			goerr.V("sections_dropped", report.SectionsDropped))
	}
	return repaired, report, nil
}

// ValidateAnalysis is ValidateOutline for transcript analysis output
func (v *Validator) ValidateAnalysis(ctx context.Context, raw, owner string) (*model.Analysis, model.RepairReport, error) {
	parsed, err := ParseAnalysis(raw)
	if err != nil {
		return nil, model.RepairReport{}, err
	}

	known, err := v.known(ctx, owner, parsed.SegmentIDs())
	if err != nil {
		return nil, model.RepairReport{}, err
	}

	repaired, report := ReconcileAnalysis(parsed, known)
	if report.ReferencesDropped > 0 {
		logging.From(ctx).Info("dropped unresolved references from analysis",
			slog.Int("dropped", report.ReferencesDropped),
			slog.Any("dropped_ids", report.DroppedIDs),
			slog.Int("unsupported_items", report.UnsupportedItems))
	}

	if repaired.Len() == 0 {
		return nil, report, goerr.Wrap(model.ErrNoValidSegments, "analysis has no items after repair",
			goerr.V("items_dropped", report.ItemsDropped))
	}
	return repaired, report, nil
}
