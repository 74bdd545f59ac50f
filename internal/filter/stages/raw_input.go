package stages

import (
	"strings"

	"copilot/internal/filter"
	"copilot/internal/ime"
)

// CandidateTypeRaw tags the candidate carrying the raw composition.
const CandidateTypeRaw = "raw"

// RawInput appends the composition buffer itself as the last candidate, so
// a Latin run typed in CJK mode can be committed verbatim. Buffers that are
// not printable ASCII get no extra candidate.
type RawInput struct {
	ticket filter.Ticket
}

// NewRawInput is the filter.Creator for the raw_input stage.
func NewRawInput(ticket filter.Ticket) (filter.Stage, error) {
	return &RawInput{ticket: ticket}, nil
}

// Apply implements filter.Stage.
func (s *RawInput) Apply(t ime.Translation) ime.Translation {
	ctx := s.ticket.Context()
	if ctx == nil {
		return t
	}
	input := ctx.Input()
	raw := strings.TrimLeft(input, " ")
	if raw == "" || !isPrintableASCII(raw) {
		return t
	}

	return func(yield func(*ime.Candidate) bool) {
		dup := false
		if t != nil {
			for c := range t {
				if c.Text == raw {
					dup = true
				}
				if !yield(c) {
					return
				}
			}
		}
		if dup {
			return
		}
		yield(&ime.Candidate{
			Type:  CandidateTypeRaw,
			Text:  raw,
			Start: len(input) - len(raw),
			End:   len(input),
		})
	}
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
