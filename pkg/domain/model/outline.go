package model

// Outline is a generated, disposable artifact derived from segments. Section order is presentation order.
type Outline struct {
	Title    string
	Sections []Section
}

// Section groups points under a heading
type Section struct {
	Heading string
	Points  []Point
}

// Point is one generated claim and the segments asserted to support it.
// Unsupported is set when no cited segment resolved for the owner.
type Point struct {
	Text        string
	SegmentIDs  []SegmentID
	Unsupported bool
}

// SegmentIDs returns the distinct ids referenced by all points in first-occurrence order
func (o *Outline) SegmentIDs() []SegmentID {
	var refs [][]SegmentID
	for _, sec := range o.Sections {
		for _, pt := range sec.Points {
			refs = append(refs, pt.SegmentIDs)
		}
	}
	return DistinctSegmentIDs(refs...)
}

// RepairReport counts what the validator changed, for observability
type RepairReport struct {
	ReferencesKept    int
	ReferencesDropped int
	DroppedIDs        []SegmentID
	UnsupportedItems  int
	ItemsDropped      int // items without text
	SectionsDropped   int
}

// Add merges other into r
func (r *RepairReport) Add(other RepairReport) {
	r.ReferencesKept += other.ReferencesKept
	r.ReferencesDropped += other.ReferencesDropped
	r.DroppedIDs = DistinctSegmentIDs(r.DroppedIDs, other.DroppedIDs)
	r.UnsupportedItems += other.UnsupportedItems
	r.ItemsDropped += other.ItemsDropped
	r.SectionsDropped += other.SectionsDropped
}

// DistinctSegmentIDs flattens id lists, dropping empty and duplicate ids while keeping first-occurrence order
func DistinctSegmentIDs(lists ...[]SegmentID) []SegmentID {
	seen := make(map[SegmentID]struct{})
	result := make([]SegmentID, 0)
	for _, ids := range lists {
		for _, id := range ids {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}
	return result
}
