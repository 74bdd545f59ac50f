package ime

import (
	"iter"
)

// Candidate is one conversion result offered to the user.
type Candidate struct {
	// Type tags where the candidate came from (e.g. "phrase", "raw").
	Type string

	// Text is what gets committed when the candidate is selected.
	Text string

	// Comment is shown next to the candidate.
	Comment string

	// Start and End are the byte range of the input the candidate covers.
	Start int
	End   int

	// Quality orders candidates from different sources.
	Quality float64
}

// Clone returns a shallow copy of the candidate.
func (c *Candidate) Clone() *Candidate {
	clone := *c
	return &clone
}

// Translation is a lazy stream of candidates. Filters wrap a translation
// in a new one; they never modify the candidates of the upstream stream.
type Translation iter.Seq[*Candidate]

// NewTranslation returns a translation over a fixed set of candidates.
func NewTranslation(cands ...*Candidate) Translation {
	return func(yield func(*Candidate) bool) {
		for _, c := range cands {
			if !yield(c) {
				return
			}
		}
	}
}

// Collect drains up to limit candidates. A limit <= 0 drains everything.
// A nil translation yields nothing.
func (t Translation) Collect(limit int) []*Candidate {
	if t == nil {
		return nil
	}
	var out []*Candidate
	for c := range t {
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// CandidateList is the page of candidates the host is currently showing.
type CandidateList struct {
	items []*Candidate
}

// NewCandidateList creates an empty candidate list.
func NewCandidateList() *CandidateList {
	return &CandidateList{}
}

// Append adds a candidate to the end of the list.
func (l *CandidateList) Append(c *Candidate) {
	l.items = append(l.items, c)
}

// Len returns the number of candidates.
func (l *CandidateList) Len() int {
	return len(l.items)
}

// At returns the candidate at index i, or nil if out of range.
func (l *CandidateList) At(i int) *Candidate {
	if i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// Items returns a copy of the candidates.
func (l *CandidateList) Items() []*Candidate {
	result := make([]*Candidate, len(l.items))
	copy(result, l.items)
	return result
}

// Clear removes all candidates.
func (l *CandidateList) Clear() {
	l.items = l.items[:0]
}

// Filter rewrites a translation before it is paged into a candidate list.
type Filter interface {
	Apply(t Translation, candidates *CandidateList) Translation
}

// Translator produces candidates for the composition buffer.
type Translator interface {
	Translate(input string) Translation
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(input string) Translation

// Translate calls f(input).
func (f TranslatorFunc) Translate(input string) Translation {
	return f(input)
}
