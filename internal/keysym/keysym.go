// Package keysym classifies X11 keysyms as delivered by IBus and other
// XKB-based input method frameworks.
//
// Only the handful of keysyms the auto-spacer cares about are named here.
// Key codes outside these ranges are never letters, digits or space keys.
package keysym

import "fmt"

// X11 keysym values (see X11/keysymdef.h).
const (
	XK_space     uint32 = 0x0020
	XK_0         uint32 = 0x0030
	XK_9         uint32 = 0x0039
	XK_A         uint32 = 0x0041
	XK_Z         uint32 = 0x005a
	XK_a         uint32 = 0x0061
	XK_z         uint32 = 0x007a
	XK_BackSpace uint32 = 0xff08
	XK_Tab       uint32 = 0xff09
	XK_Return    uint32 = 0xff0d
	XK_Escape    uint32 = 0xff1b
	XK_KP_Enter  uint32 = 0xff8d
	XK_Delete    uint32 = 0xffff
)

// unicodeKeysymBase is added to a code point to form a Unicode keysym.
const unicodeKeysymBase uint32 = 0x01000000

// IsDigit returns true for the keysyms '0' through '9'.
func IsDigit(code uint32) bool {
	return code >= XK_0 && code <= XK_9
}

// IsAlnum returns true for ASCII digit and letter keysyms.
func IsAlnum(code uint32) bool {
	return IsDigit(code) ||
		(code >= XK_a && code <= XK_z) ||
		(code >= XK_A && code <= XK_Z)
}

// IsSpace returns true for space, Return and keypad Enter.
func IsSpace(code uint32) bool {
	return code == XK_space || code == XK_Return || code == XK_KP_Enter
}

// IsSelection returns true for keys that usually pick a candidate
// rather than extend the typed text.
func IsSelection(code uint32) bool {
	return IsDigit(code) || IsSpace(code)
}

// ToRune converts a keysym to the character it produces.
// Returns 0 for keysyms that do not produce a character.
func ToRune(code uint32) rune {
	// Latin-1 keysyms map directly to their code points
	if code >= 0x20 && code <= 0x7e {
		return rune(code)
	}
	if code >= 0xa0 && code <= 0xff {
		return rune(code)
	}

	if code >= unicodeKeysymBase && code <= unicodeKeysymBase+0x10ffff {
		return rune(code - unicodeKeysymBase)
	}

	return 0
}

// Name returns a short human-readable name for logging.
func Name(code uint32) string {
	switch code {
	case XK_space:
		return "space"
	case XK_Return:
		return "Return"
	case XK_KP_Enter:
		return "KP_Enter"
	case XK_BackSpace:
		return "BackSpace"
	case XK_Tab:
		return "Tab"
	case XK_Escape:
		return "Escape"
	case XK_Delete:
		return "Delete"
	}
	if r := ToRune(code); r != 0 {
		return string(r)
	}
	return fmt.Sprintf("0x%x", code)
}
