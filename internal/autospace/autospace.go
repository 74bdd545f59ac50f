// Package autospace inserts a boundary space when typing switches between a
// Latin/alphanumeric run and a CJK run.
//
// The AutoSpacer runs as a key processor ahead of the host's composition
// handling. For every unmodified letter key it looks at the last committed
// text and the ascii mode switch:
//
//   - last commit ends in a letter or digit, ascii mode off: the composition
//     buffer becomes " " plus the key, so the CJK text that follows is
//     separated from the Latin run.
//   - last commit ends in something else, ascii mode on: " " plus the key is
//     committed directly.
//
// In every other case the key is left to the host.
package autospace

import (
	"log/slog"

	"copilot/internal/charclass"
	"copilot/internal/ime"
	"copilot/internal/keysym"
)

// DefaultASCIIModeOption is the context switch that selects ascii mode.
const DefaultASCIIModeOption = ime.DefaultASCIIModeOption

// Option configures an AutoSpacer.
type Option func(*AutoSpacer)

// WithLogger sets the logger used for decision tracing.
func WithLogger(l *slog.Logger) Option {
	return func(a *AutoSpacer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithASCIIModeOption sets the name of the ascii mode switch.
func WithASCIIModeOption(name string) Option {
	return func(a *AutoSpacer) {
		if name != "" {
			a.asciiModeOption = name
		}
	}
}

// WithEnabled turns the spacer on or off. A disabled spacer never accepts.
func WithEnabled(enabled bool) Option {
	return func(a *AutoSpacer) {
		a.enabled = enabled
	}
}

// AutoSpacer decides, per key press, whether a boundary space is needed.
// It is not safe for concurrent use.
type AutoSpacer struct {
	engine          ime.Engine
	logger          *slog.Logger
	asciiModeOption string
	enabled         bool

	// prevASCIIMode is the ascii mode seen before the last processed event.
	// No rule reads it yet.
	prevASCIIMode bool
}

// New creates an AutoSpacer bound to engine. engine may be nil, in which
// case Process always returns Noop.
func New(engine ime.Engine, opts ...Option) *AutoSpacer {
	a := &AutoSpacer{
		engine:          engine,
		logger:          slog.New(slog.DiscardHandler),
		asciiModeOption: DefaultASCIIModeOption,
		enabled:         true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Process implements ime.Processor.
func (a *AutoSpacer) Process(ev ime.KeyEvent) ime.ProcessResult {
	if a.engine == nil || ev.Release {
		return ime.Noop
	}
	ctx := a.engine.Context()
	if ctx == nil {
		return ime.Noop
	}

	asciiMode := ctx.Option(a.asciiModeOption)
	res := a.ProcessContext(ctx, ev)
	a.prevASCIIMode = asciiMode
	return res
}

// ProcessContext makes the spacing decision for ev against ctx.
func (a *AutoSpacer) ProcessContext(ctx ime.Context, ev ime.KeyEvent) ime.ProcessResult {
	if !a.enabled || ctx == nil {
		return ime.Noop
	}

	code := ev.Keysym
	latest := ctx.CommitHistory().LatestText()
	asciiMode := ctx.Option(a.asciiModeOption)

	switch {
	case latest == "":
		return ime.Noop
	case keysym.IsDigit(code):
		// digits select candidates
		return ime.Noop
	case keysym.IsSpace(code):
		return ime.Noop
	case ev.Modifiers != 0 || ev.Release:
		return ime.Noop
	case !keysym.IsAlnum(code):
		return ime.Noop
	case ctx.Input() != "" || latest == " ":
		return ime.Noop
	}

	lastAlnum := charclass.IsLastCharAlnum(latest)
	spaced := " " + string(rune(code))

	if lastAlnum && !asciiMode {
		a.logger.Debug("boundary space before cjk input", "sym", keysym.Name(code))
		ctx.SetInput(spaced)
		return ime.Accepted
	}

	if !lastAlnum && asciiMode && a.engine != nil {
		a.logger.Debug("boundary space before ascii input", "sym", keysym.Name(code))
		a.engine.CommitText(spaced)
		return ime.Accepted
	}

	return ime.Noop
}

// PreviousASCIIMode returns the ascii mode observed before the most recent
// event handled by Process.
func (a *AutoSpacer) PreviousASCIIMode() bool {
	return a.prevASCIIMode
}

// Enabled reports whether the spacer is active.
func (a *AutoSpacer) Enabled() bool {
	return a.enabled
}

// SetEnabled turns the spacer on or off.
func (a *AutoSpacer) SetEnabled(enabled bool) {
	a.enabled = enabled
}
