// Package filter composes candidate transforms into a single filter.
//
// A Stage rewrites a translation (a lazy stream of candidates). A Chain
// holds a fixed, ordered list of stages built once from registered
// creators, and applies them left to right:
//
//	chain.Apply(t) == stageN.Apply(... stage2.Apply(stage1.Apply(t)))
//
// Stages are named in configuration as "klass" or "klass@namespace". The
// namespace is passed to the stage's creator in the Ticket, which lets one
// stage class serve several configured instances (e.g. "lua@/path/a.lua").
package filter

import (
	"errors"
	"log/slog"

	"copilot/internal/ime"
)

// Stage is one translation transform.
type Stage interface {
	// Apply wraps t. It must not modify candidates yielded by t in place.
	Apply(t ime.Translation) ime.Translation
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(ime.Translation) ime.Translation

// Apply calls f(t).
func (f StageFunc) Apply(t ime.Translation) ime.Translation {
	return f(t)
}

// Ticket carries what a stage creator needs to bind a stage to its host.
type Ticket struct {
	// Engine is the host handle. Stages read the editing context through it.
	Engine ime.Engine

	// Name is the stage class, e.g. "raw_input".
	Name string

	// Namespace selects the stage instance's configuration. Empty unless
	// the stage was named "klass@namespace".
	Namespace string

	// Options are free-form settings for the stage.
	Options map[string]any

	// Logger is the stage's logger. Nil means discard.
	Logger *slog.Logger
}

// logger returns the ticket's logger or a discarding one.
func (t Ticket) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.Logger
}

// Context returns the active editing context, or nil.
func (t Ticket) Context() ime.Context {
	if t.Engine == nil {
		return nil
	}
	return t.Engine.Context()
}

// Creator builds a stage bound to ticket.
type Creator func(ticket Ticket) (Stage, error)

// Errors returned when building a chain.
var (
	ErrEmptyChain   = errors.New("filter chain needs at least one stage")
	ErrUnknownStage = errors.New("unknown filter stage")
)
