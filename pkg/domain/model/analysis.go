package model

// Analysis is the topic / key moment / key term breakdown of a set of segments
type Analysis struct {
	Topics     []Topic
	KeyMoments []KeyMoment
	KeyTerms   []KeyTerm
}

// Topic is a theme or narrative beat of the conversation
type Topic struct {
	Title       string
	Description string
	SegmentIDs  []SegmentID
	Unsupported bool
}

// KeyMomentType classifies a key moment
type KeyMomentType string

const (
	KeyMomentDecision   KeyMomentType = "decision"
	KeyMomentQuestion   KeyMomentType = "question"
	KeyMomentRevelation KeyMomentType = "revelation"
	KeyMomentOther      KeyMomentType = "other"
)

// NormalizeKeyMomentType maps free-form model output onto the known types
func NormalizeKeyMomentType(s string) KeyMomentType {
	switch KeyMomentType(s) {
	case KeyMomentDecision, KeyMomentQuestion, KeyMomentRevelation:
		return KeyMomentType(s)
	default:
		return KeyMomentOther
	}
}

// KeyMoment is a decision, question or revelation in the conversation
type KeyMoment struct {
	Description string
	Type        KeyMomentType
	SegmentIDs  []SegmentID
	Unsupported bool
}

// KeyTerm is a term or concept with a short definition
type KeyTerm struct {
	Term        string
	Definition  string
	SegmentIDs  []SegmentID
	Unsupported bool
}

// SegmentIDs returns the distinct ids referenced by all items in first-occurrence order
func (a *Analysis) SegmentIDs() []SegmentID {
	var refs [][]SegmentID
	for _, t := range a.Topics {
		refs = append(refs, t.SegmentIDs)
	}
	for _, m := range a.KeyMoments {
		refs = append(refs, m.SegmentIDs)
	}
	for _, k := range a.KeyTerms {
		refs = append(refs, k.SegmentIDs)
	}
	return DistinctSegmentIDs(refs...)
}

// Len returns the number of topics, key moments and key terms
func (a *Analysis) Len() int {
	return len(a.Topics) + len(a.KeyMoments) + len(a.KeyTerms)
}
