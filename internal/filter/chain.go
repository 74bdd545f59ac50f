package filter

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"copilot/internal/config"
	"copilot/internal/ime"
)

// Stage classes provided by the stages package.
const (
	StageRawInput   = "raw_input"
	StageAutoSpacer = "auto_spacer"
)

// Chain applies a fixed list of stages in order. It implements ime.Filter.
// A Chain is immutable after construction and safe for concurrent use if
// its stages are.
type Chain struct {
	ticket Ticket
	names  []string
	stages []Stage
}

// NewChain builds one stage per name, in order. Names have the form
// "klass" or "klass@namespace".
func NewChain(ticket Ticket, names ...string) (*Chain, error) {
	if len(names) == 0 {
		return nil, ErrEmptyChain
	}

	c := &Chain{
		ticket: ticket,
		names:  make([]string, 0, len(names)),
		stages: make([]Stage, 0, len(names)),
	}
	for _, name := range names {
		klass, ns, _ := strings.Cut(name, "@")
		create, ok := Lookup(klass)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStage, klass)
		}

		t := ticket
		t.Name = klass
		if ns != "" {
			t.Namespace = ns
		}
		t.Logger = ticket.logger().With("stage", name)

		stage, err := create(t)
		if err != nil {
			return nil, fmt.Errorf("create stage %q: %w", name, err)
		}
		c.names = append(c.names, name)
		c.stages = append(c.stages, stage)
	}
	return c, nil
}

// NewChainOf builds a chain from already constructed stages.
func NewChainOf(ticket Ticket, stages ...Stage) (*Chain, error) {
	if len(stages) == 0 {
		return nil, ErrEmptyChain
	}
	names := make([]string, len(stages))
	for i := range stages {
		names[i] = fmt.Sprintf("stage%d", i)
	}
	return &Chain{
		ticket: ticket,
		names:  names,
		stages: append([]Stage(nil), stages...),
	}, nil
}

// NewChainFromConfig builds the chain listed in cfg.
func NewChainFromConfig(ticket Ticket, cfg config.FiltersConfig) (*Chain, error) {
	if ticket.Options == nil && len(cfg.Options) > 0 {
		ticket.Options = cfg.Options
	}
	return NewChain(ticket, cfg.Stages...)
}

// Apply threads t through every stage. Without a candidate list or an
// active editing context, t is returned unchanged.
func (c *Chain) Apply(t ime.Translation, candidates *ime.CandidateList) ime.Translation {
	if candidates == nil || c.ticket.Context() == nil {
		return t
	}
	for _, s := range c.stages {
		t = s.Apply(t)
	}
	return t
}

// Names returns the stage names in application order.
func (c *Chain) Names() []string {
	return append([]string(nil), c.names...)
}

// Len returns the number of stages.
func (c *Chain) Len() int {
	return len(c.stages)
}

// Close closes every stage that implements io.Closer.
func (c *Chain) Close() error {
	var errs []error
	for i, s := range c.stages {
		if cl, ok := s.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close stage %q: %w", c.names[i], err))
			}
		}
	}
	return errors.Join(errs...)
}

// NewAutoSpacerFilter returns the single-stage auto-spacer filter.
func NewAutoSpacerFilter(ticket Ticket) (*Chain, error) {
	return NewChain(ticket, StageAutoSpacer)
}

// NewRawInputFilter returns the single-stage raw-input filter.
func NewRawInputFilter(ticket Ticket) (*Chain, error) {
	return NewChain(ticket, StageRawInput)
}

// NewCopilotFilter returns the raw-input stage followed by the auto-spacer
// stage.
func NewCopilotFilter(ticket Ticket) (*Chain, error) {
	return NewChain(ticket, StageRawInput, StageAutoSpacer)
}
