package stages

import (
	"strings"

	"copilot/internal/filter"
	"copilot/internal/ime"
)

// AutoSpacer keeps the boundary space the key processor put at the start of
// the composition buffer: while the buffer starts with a space, every
// candidate is committed with a leading space.
type AutoSpacer struct {
	ticket filter.Ticket
}

// NewAutoSpacer is the filter.Creator for the auto_spacer stage.
func NewAutoSpacer(ticket filter.Ticket) (filter.Stage, error) {
	return &AutoSpacer{ticket: ticket}, nil
}

// Apply implements filter.Stage.
func (s *AutoSpacer) Apply(t ime.Translation) ime.Translation {
	ctx := s.ticket.Context()
	if t == nil || ctx == nil || !strings.HasPrefix(ctx.Input(), " ") {
		return t
	}

	return func(yield func(*ime.Candidate) bool) {
		for c := range t {
			if !strings.HasPrefix(c.Text, " ") {
				c = c.Clone()
				c.Text = " " + c.Text
			}
			if !yield(c) {
				return
			}
		}
	}
}
