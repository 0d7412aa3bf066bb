package outline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/service/outline"
)

type resolverFunc func(ctx context.Context, owner string, ids []model.SegmentID) ([]*model.Segment, []model.SegmentID, error)

func (f resolverFunc) Resolve(ctx context.Context, owner string, ids []model.SegmentID) ([]*model.Segment, []model.SegmentID, error) {
	return f(ctx, owner, ids)
}

// staticResolver resolves ids present in segments for owner "user-1" only
func staticResolver(calls *int, existing ...model.SegmentID) outline.Resolver {
	return resolverFunc(func(ctx context.Context, owner string, ids []model.SegmentID) ([]*model.Segment, []model.SegmentID, error) {
		*calls++
		set := map[model.SegmentID]bool{}
		for _, id := range existing {
			set[id] = true
		}
		var found []*model.Segment
		var missing []model.SegmentID
		for _, id := range ids {
			if owner == "user-1" && set[id] {
				found = append(found, &model.Segment{ID: id, Owner: owner, Text: "x"})
			} else {
				missing = append(missing, id)
			}
		}
		return found, missing, nil
	})
}

func TestParseOutline(t *testing.T) {
	t.Run("valid output", func(t *testing.T) {
		o, err := outline.ParseOutline(`{"title":" Plan ","sections":[{"heading":"Intro","points":[{"text":"Greeting","segment_ids":["a","[segment:b]","a"]}]}]}`)
		gt.NoError(t, err).Required()
		gt.Value(t, o.Title).Equal("Plan")
		gt.Array(t, o.Sections).Length(1)
		gt.Array(t, o.Sections[0].Points[0].SegmentIDs).Equal([]model.SegmentID{"a", "b"})
	})

	t.Run("code fence is stripped", func(t *testing.T) {
		o, err := outline.ParseOutline("```json\n{\"title\":\"T\",\"sections\":[]}\n```")
		gt.NoError(t, err).Required()
		gt.Value(t, o.Title).Equal("T")
	})

	t.Run("truncated JSON is a schema error", func(t *testing.T) {
		_, err := outline.ParseOutline(`{"title":"Plan","sections":[{"heading":"Intro","points":[{"text":"Gre`)
		gt.Error(t, err).Is(model.ErrSchema)
	})

	t.Run("missing sections field is a schema error", func(t *testing.T) {
		_, err := outline.ParseOutline(`{"title":"Plan"}`)
		gt.Error(t, err).Is(model.ErrSchema)
	})

	t.Run("trailing data is a schema error", func(t *testing.T) {
		_, err := outline.ParseOutline(`{"title":"a","sections":[]} {"title":"b"}`)
		gt.Error(t, err).Is(model.ErrSchema)
	})

	t.Run("wrong types are a schema error", func(t *testing.T) {
		_, err := outline.ParseOutline(`{"title":"a","sections":"none"}`)
		gt.Error(t, err).Is(model.ErrSchema)
	})
}

func TestReconcile(t *testing.T) {
	known := outline.KnownSet{"id1": {}, "id2": {}}

	t.Run("drops only invalid ids", func(t *testing.T) {
		in := &model.Outline{
			Title: "T",
			Sections: []model.Section{
				{Heading: "A", Points: []model.Point{
					{Text: "p1", SegmentIDs: []model.SegmentID{"id1", "nonexistent-id"}},
					{Text: "p2", SegmentIDs: []model.SegmentID{"id2"}},
				}},
			},
		}
		out, report := outline.Reconcile(in, known)
		gt.Array(t, out.Sections).Length(1)
		gt.Array(t, out.Sections[0].Points).Length(2)
		gt.Array(t, out.Sections[0].Points[0].SegmentIDs).Equal([]model.SegmentID{"id1"})
		gt.Bool(t, out.Sections[0].Points[0].Unsupported).False()
		gt.Number(t, report.ReferencesKept).Equal(2)
		gt.Number(t, report.ReferencesDropped).Equal(1)
		gt.Array(t, report.DroppedIDs).Equal([]model.SegmentID{"nonexistent-id"})

		// input is not modified
		gt.Array(t, in.Sections[0].Points[0].SegmentIDs).Length(2)
	})

	t.Run("point without valid references is kept as unsupported", func(t *testing.T) {
		in := &model.Outline{Sections: []model.Section{
			{Heading: "A", Points: []model.Point{
				{Text: "invented", SegmentIDs: []model.SegmentID{"ghost"}},
				{Text: "uncited"},
				{Text: "ok", SegmentIDs: []model.SegmentID{"id1"}},
			}},
		}}
		out, report := outline.Reconcile(in, known)
		gt.Array(t, out.Sections[0].Points).Length(3)
		gt.Bool(t, out.Sections[0].Points[0].Unsupported).True()
		gt.Array(t, out.Sections[0].Points[0].SegmentIDs).Length(0)
		gt.Bool(t, out.Sections[0].Points[1].Unsupported).True()
		gt.Number(t, report.UnsupportedItems).Equal(2)
		gt.Number(t, report.ItemsDropped).Equal(0)
	})

	t.Run("empty sections are dropped", func(t *testing.T) {
		in := &model.Outline{Sections: []model.Section{
			{Heading: "Empty"},
			{Heading: "Blank", Points: []model.Point{{Text: "", SegmentIDs: []model.SegmentID{"id1"}}}},
			{Heading: "Kept", Points: []model.Point{{Text: "p", SegmentIDs: []model.SegmentID{"id1"}}}},
		}}
		out, report := outline.Reconcile(in, known)
		gt.Array(t, out.Sections).Length(1)
		gt.Value(t, out.Sections[0].Heading).Equal("Kept")
		gt.Number(t, report.SectionsDropped).Equal(2)
		gt.Number(t, report.ItemsDropped).Equal(1)
	})

	t.Run("no reference outside the known set survives", func(t *testing.T) {
		in := &model.Outline{Sections: []model.Section{
			{Heading: "A", Points: []model.Point{
				{Text: "a", SegmentIDs: []model.SegmentID{"x", "id2", "y", "id1", "id2"}},
				{Text: "b", SegmentIDs: []model.SegmentID{"z"}},
			}},
			{Heading: "B", Points: []model.Point{
				{Text: "c", SegmentIDs: []model.SegmentID{"id1", "w"}},
			}},
		}}
		out, _ := outline.Reconcile(in, known)
		for _, id := range out.SegmentIDs() {
			_, ok := known[id]
			gt.Bool(t, ok).True()
		}
		gt.Array(t, out.Sections[0].Points[0].SegmentIDs).Equal([]model.SegmentID{"id2", "id1"})
	})
}

func TestReconcileAnalysis(t *testing.T) {
	known := outline.KnownSet{"id1": {}}
	in := &model.Analysis{
		Topics: []model.Topic{
			{Title: "Budget", SegmentIDs: []model.SegmentID{"id1", "ghost"}},
			{},
		},
		KeyMoments: []model.KeyMoment{
			{Description: "Decided to ship", Type: model.KeyMomentDecision, SegmentIDs: []model.SegmentID{"ghost"}},
		},
		KeyTerms: []model.KeyTerm{
			{Term: "MVP", SegmentIDs: []model.SegmentID{"id1"}},
		},
	}

	out, report := outline.ReconcileAnalysis(in, known)
	gt.Array(t, out.Topics).Length(1)
	gt.Array(t, out.Topics[0].SegmentIDs).Equal([]model.SegmentID{"id1"})
	gt.Array(t, out.KeyMoments).Length(1)
	gt.Bool(t, out.KeyMoments[0].Unsupported).True()
	gt.Bool(t, out.KeyTerms[0].Unsupported).False()
	gt.Number(t, report.ReferencesKept).Equal(2)
	gt.Number(t, report.ReferencesDropped).Equal(2)
	gt.Array(t, report.DroppedIDs).Equal([]model.SegmentID{"ghost"})
	gt.Number(t, report.UnsupportedItems).Equal(1)
	gt.Number(t, report.ItemsDropped).Equal(1)
}

func TestValidateOutline(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps valid ids and drops the invalid one", func(t *testing.T) {
		calls := 0
		v := outline.New(staticResolver(&calls, "id1", "id2"))
		raw := `{"title":"Kickoff","sections":[
			{"heading":"Greetings","points":[{"text":"They say hello","segment_ids":["id1","nonexistent-id"]}]},
			{"heading":"Start","points":[{"text":"They begin","segment_ids":["id2"]}]}]}`

		o, report, err := v.ValidateOutline(ctx, raw, "user-1")
		gt.NoError(t, err).Required()
		gt.Number(t, calls).Equal(1)
		gt.Array(t, o.Sections).Length(2)
		gt.Array(t, o.Sections[0].Points[0].SegmentIDs).Equal([]model.SegmentID{"id1"})
		gt.Number(t, report.ReferencesDropped).Equal(1)
	})

	t.Run("references of another owner are dropped", func(t *testing.T) {
		calls := 0
		v := outline.New(staticResolver(&calls, "id1"))
		raw := `{"title":"T","sections":[{"heading":"A","points":[{"text":"p","segment_ids":["id1"]}]}]}`

		o, report, err := v.ValidateOutline(ctx, raw, "user-2")
		gt.NoError(t, err).Required()
		gt.Array(t, o.Sections[0].Points[0].SegmentIDs).Length(0)
		gt.Bool(t, o.Sections[0].Points[0].Unsupported).True()
		gt.Array(t, report.DroppedIDs).Equal([]model.SegmentID{"id1"})
	})

	t.Run("zero sections fails", func(t *testing.T) {
		calls := 0
		v := outline.New(staticResolver(&calls, "id1"))

		_, _, err := v.ValidateOutline(ctx, `{"title":"T","sections":[]}`, "user-1")
		gt.Error(t, err).Is(model.ErrNoValidSegments)
		gt.Number(t, calls).Equal(0)
	})

	t.Run("section of unsupported points is returned marked", func(t *testing.T) {
		calls := 0
		v := outline.New(staticResolver(&calls, "id1"))
		raw := `{"title":"T","sections":[{"heading":"A","points":[{"text":"p","segment_ids":["ghost"]},{"text":"q","segment_ids":[]}]}]}`

		o, report, err := v.ValidateOutline(ctx, raw, "user-1")
		gt.NoError(t, err).Required()
		gt.Array(t, o.Sections).Length(1)
		gt.Array(t, o.Sections[0].Points).Length(2)
		for _, pt := range o.Sections[0].Points {
			gt.Bool(t, pt.Unsupported).True()
			gt.Array(t, pt.SegmentIDs).Length(0)
		}
		gt.Number(t, report.UnsupportedItems).Equal(2)
		gt.Number(t, report.SectionsDropped).Equal(0)
	})

	t.Run("uncited informative claim is kept", func(t *testing.T) {
		calls := 0
		v := outline.New(staticResolver(&calls, "id1"))
		raw := `{"title":"T","sections":[{"heading":"A","points":[{"text":"informative claim","segment_ids":[]}]}]}`

		o, report, err := v.ValidateOutline(ctx, raw, "user-1")
		gt.NoError(t, err).Required()
		gt.Value(t, o.Sections[0].Points[0].Text).Equal("informative claim")
		gt.Bool(t, o.Sections[0].Points[0].Unsupported).True()
		gt.Number(t, report.UnsupportedItems).Equal(1)
		gt.Number(t, calls).Equal(0)
	})

	t.Run("sections of blank points only fail", func(t *testing.T) {
		calls := 0
		v := outline.New(staticResolver(&calls, "id1"))
		raw := `{"title":"T","sections":[{"heading":"A","points":[{"text":"","segment_ids":["id1"]}]}]}`

		_, report, err := v.ValidateOutline(ctx, raw, "user-1")
		gt.Error(t, err).Is(model.ErrNoValidSegments)
		gt.Number(t, report.ItemsDropped).Equal(1)
		gt.Number(t, report.SectionsDropped).Equal(1)
	})

	t.Run("invalid JSON is a schema error and resolves nothing", func(t *testing.T) {
		calls := 0
		v := outline.New(staticResolver(&calls, "id1"))

		_, _, err := v.ValidateOutline(ctx, `{"title":`, "user-1")
		gt.Error(t, err).Is(model.ErrSchema)
		gt.Number(t, calls).Equal(0)
	})

	t.Run("store failure is surfaced", func(t *testing.T) {
		v := outline.New(resolverFunc(func(ctx context.Context, owner string, ids []model.SegmentID) ([]*model.Segment, []model.SegmentID, error) {
			return nil, nil, errors.Join(model.ErrStoreUnavailable, errors.New("connection refused"))
		}))
		raw := `{"title":"T","sections":[{"heading":"A","points":[{"text":"p","segment_ids":["id1"]}]}]}`

		_, _, err := v.ValidateOutline(ctx, raw, "user-1")
		gt.Error(t, err).Is(model.ErrStoreUnavailable)
	})
}

func TestValidateAnalysis(t *testing.T) {
	ctx := context.Background()
	calls := 0
	v := outline.New(staticResolver(&calls, "id1"))

	t.Run("valid analysis", func(t *testing.T) {
		raw := `{"topics":[{"title":"Budget","description":"Money","segment_ids":["id1"]}],
			"key_moments":[{"description":"Why now?","type":"Question","segment_ids":["id1","ghost"]}],
			"key_terms":[]}`
		a, report, err := v.ValidateAnalysis(ctx, raw, "user-1")
		gt.NoError(t, err).Required()
		gt.Value(t, a.KeyMoments[0].Type).Equal(model.KeyMomentQuestion)
		gt.Number(t, report.ReferencesDropped).Equal(1)
	})

	t.Run("unsupported items are kept", func(t *testing.T) {
		raw := `{"topics":[{"title":"Budget","segment_ids":["ghost"]}],"key_moments":[],"key_terms":[]}`
		a, report, err := v.ValidateAnalysis(ctx, raw, "user-1")
		gt.NoError(t, err).Required()
		gt.Array(t, a.Topics).Length(1)
		gt.Bool(t, a.Topics[0].Unsupported).True()
		gt.Number(t, report.UnsupportedItems).Equal(1)
	})

	t.Run("no item left fails", func(t *testing.T) {
		raw := `{"topics":[{"title":"","description":"","segment_ids":["id1"]}],"key_moments":[],"key_terms":[]}`
		_, report, err := v.ValidateAnalysis(ctx, raw, "user-1")
		gt.Error(t, err).Is(model.ErrNoValidSegments)
		gt.Number(t, report.ItemsDropped).Equal(1)
	})

	t.Run("unknown moment type becomes other", func(t *testing.T) {
		raw := `{"topics":[],"key_moments":[{"description":"Huh","type":"surprise","segment_ids":["id1"]}],"key_terms":[]}`
		a, _, err := v.ValidateAnalysis(ctx, raw, "user-1")
		gt.NoError(t, err).Required()
		gt.Value(t, a.KeyMoments[0].Type).Equal(model.KeyMomentOther)
	})
}

func TestTasks(t *testing.T) {
	task := outline.OutlineTask("")
	gt.Value(t, task.Instruction).Equal(outline.DefaultOutlineInstruction)
	gt.Value(t, task.Schema).NotNil()

	task = outline.AnalysisTask("custom")
	gt.Value(t, task.Instruction).Equal("custom")
	gt.Value(t, task.Name).Equal("analysis")
}
