package ime

import (
	"fmt"
	"strings"

	"copilot/internal/keysym"
)

// Modifier is the X11/IBus key state mask.
type Modifier uint32

// IBus key event state masks.
const (
	ModShift   Modifier = 1 << 0
	ModLock    Modifier = 1 << 1
	ModControl Modifier = 1 << 2
	ModAlt     Modifier = 1 << 3 // Mod1
	ModSuper   Modifier = 1 << 6 // Mod4
	ModRelease Modifier = 1 << 30
)

// KeyEvent is a single physical key press or release.
type KeyEvent struct {
	// Keysym is the X11 keysym produced by the key.
	Keysym uint32

	// Keycode is the hardware keycode, when known.
	Keycode uint32

	// Modifiers holds the modifier state without the release bit.
	Modifiers Modifier

	// Release is true for key release events.
	Release bool
}

// NewKeyEvent creates a key press event.
func NewKeyEvent(sym uint32, mods Modifier) KeyEvent {
	return KeyEvent{
		Keysym:    sym,
		Modifiers: mods &^ ModRelease,
	}
}

// KeyEventFromState decodes the (keyval, keycode, state) triple IBus passes
// to ProcessKeyEvent. The release bit is moved out of the modifier mask.
func KeyEventFromState(keyval, keycode, state uint32) KeyEvent {
	mods := Modifier(state)
	return KeyEvent{
		Keysym:    keyval,
		Keycode:   keycode,
		Modifiers: mods &^ ModRelease,
		Release:   mods&ModRelease != 0,
	}
}

// Char returns the character the key produces, or 0.
func (e KeyEvent) Char() rune {
	return keysym.ToRune(e.Keysym)
}

// String returns a compact representation like "C-a" or "Return(up)".
func (e KeyEvent) String() string {
	var parts []string
	if e.Modifiers&ModControl != 0 {
		parts = append(parts, "C")
	}
	if e.Modifiers&ModAlt != 0 {
		parts = append(parts, "A")
	}
	if e.Modifiers&ModSuper != 0 {
		parts = append(parts, "M")
	}
	if e.Modifiers&ModShift != 0 {
		parts = append(parts, "S")
	}
	parts = append(parts, keysym.Name(e.Keysym))

	s := strings.Join(parts, "-")
	if e.Release {
		s += "(up)"
	}
	return s
}

// ProcessResult is the outcome of offering a key event to a processor.
type ProcessResult int

const (
	// Noop leaves the event to the next processor or the default handling.
	Noop ProcessResult = iota

	// Accepted means the event was consumed.
	Accepted
)

// String returns the result name.
func (r ProcessResult) String() string {
	switch r {
	case Noop:
		return "noop"
	case Accepted:
		return "accepted"
	default:
		return fmt.Sprintf("ProcessResult(%d)", int(r))
	}
}

// History exposes the text the host has committed.
type History interface {
	// LatestText returns the most recently committed text, or "".
	LatestText() string
}

// Context is the editing state of the focused input field.
type Context interface {
	// Option returns the value of a boolean switch such as "ascii_mode".
	Option(name string) bool

	// Input returns the composition buffer.
	Input() string

	// SetInput replaces the composition buffer.
	SetInput(input string)

	// CommitHistory returns the record of committed text.
	CommitHistory() History
}

// Engine is the handle processors and filters use to reach the host.
type Engine interface {
	// Context returns the active editing context, or nil if there is none.
	Context() Context

	// CommitText emits text immediately, bypassing composition.
	CommitText(text string)
}

// Processor inspects key events before the host's default handling.
type Processor interface {
	// Process returns Accepted if the event must not be handled further.
	Process(event KeyEvent) ProcessResult
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(KeyEvent) ProcessResult

// Process calls f(event).
func (f ProcessorFunc) Process(event KeyEvent) ProcessResult {
	return f(event)
}
