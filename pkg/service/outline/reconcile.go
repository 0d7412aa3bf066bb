package outline

import "github.com/secmon-lab/storyweaver/pkg/domain/model"

// KnownSet is the set of segment ids that resolved for the requesting owner
type KnownSet map[model.SegmentID]struct{}

// NewKnownSet builds a KnownSet from resolved segments
func NewKnownSet(segments []*model.Segment) KnownSet {
	known := make(KnownSet, len(segments))
	for _, seg := range segments {
		known[seg.ID] = struct{}{}
	}
	return known
}

func (k KnownSet) has(id model.SegmentID) bool {
	_, ok := k[id]
	return ok
}

// filter splits ids into resolved and unresolved, updating report
func (k KnownSet) filter(ids []model.SegmentID, report *model.RepairReport) []model.SegmentID {
	kept := make([]model.SegmentID, 0, len(ids))
	var dropped []model.SegmentID
	for _, id := range model.DistinctSegmentIDs(ids) {
		if k.has(id) {
			kept = append(kept, id)
			continue
		}
		dropped = append(dropped, id)
	}
	report.ReferencesKept += len(kept)
	report.ReferencesDropped += len(dropped)
	report.DroppedIDs = model.DistinctSegmentIDs(report.DroppedIDs, dropped)
	if len(kept) == 0 {
		report.UnsupportedItems++
	}
	return kept
}

// Reconcile applies the repair policy to outline against known and returns a new outline.
// Unresolved ids are removed; a point left without references is kept and marked unsupported;
// a point without text is dropped and counted; a section left without points is dropped.
// It has no side effects and never returns a point citing an id outside known.
func Reconcile(outline *model.Outline, known KnownSet) (*model.Outline, model.RepairReport) {
	var report model.RepairReport
	repaired := &model.Outline{Title: outline.Title}

	for _, sec := range outline.Sections {
		section := model.Section{Heading: sec.Heading}
		for _, pt := range sec.Points {
			if pt.Text == "" {
				report.ItemsDropped++
				continue
			}
			ids := known.filter(pt.SegmentIDs, &report)
			section.Points = append(section.Points, model.Point{
				Text:        pt.Text,
				SegmentIDs:  ids,
				Unsupported: len(ids) == 0,
			})
		}
		if len(section.Points) == 0 {
			report.SectionsDropped++
			continue
		}
		repaired.Sections = append(repaired.Sections, section)
	}

	return repaired, report
}

// ReconcileAnalysis applies the same repair rules as Reconcile to every analysis item.
// Items without any text are dropped and counted in ItemsDropped.
func ReconcileAnalysis(analysis *model.Analysis, known KnownSet) (*model.Analysis, model.RepairReport) {
	var report model.RepairReport
	repaired := &model.Analysis{}

	for _, t := range analysis.Topics {
		if t.Title == "" && t.Description == "" {
			report.ItemsDropped++
			continue
		}
		ids := known.filter(t.SegmentIDs, &report)
		t.SegmentIDs, t.Unsupported = ids, len(ids) == 0
		repaired.Topics = append(repaired.Topics, t)
	}
	for _, m := range analysis.KeyMoments {
		if m.Description == "" {
			report.ItemsDropped++
			continue
		}
		ids := known.filter(m.SegmentIDs, &report)
		m.SegmentIDs, m.Unsupported = ids, len(ids) == 0
		repaired.KeyMoments = append(repaired.KeyMoments, m)
	}
	for _, k := range analysis.KeyTerms {
		if k.Term == "" {
			report.ItemsDropped++
			continue
		}
		ids := known.filter(k.SegmentIDs, &report)
		k.SegmentIDs, k.Unsupported = ids, len(ids) == 0
		repaired.KeyTerms = append(repaired.KeyTerms, k)
	}

	return repaired, report
}
