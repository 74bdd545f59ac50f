package keysym

import (
	"testing"
)

func TestIsDigit(t *testing.T) {
	tests := []struct {
		name string
		code uint32
		want bool
	}{
		{"zero", XK_0, true},
		{"five", 0x35, true},
		{"nine", XK_9, true},
		{"slash before zero", 0x2f, false},
		{"colon after nine", 0x3a, false},
		{"letter a", XK_a, false},
		{"keypad enter", XK_KP_Enter, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDigit(tt.code); got != tt.want {
				t.Errorf("IsDigit(0x%x) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsAlnum(t *testing.T) {
	tests := []struct {
		name string
		code uint32
		want bool
	}{
		{"digit", XK_0, true},
		{"lower a", XK_a, true},
		{"lower z", XK_z, true},
		{"upper A", XK_A, true},
		{"upper Z", XK_Z, true},
		{"at sign", 0x40, false},
		{"bracket", 0x5b, false},
		{"backtick", 0x60, false},
		{"brace", 0x7b, false},
		{"space", XK_space, false},
		{"return", XK_Return, false},
		{"latin-1 e acute", 0xe9, false},
		{"unicode keysym", 0x01004e2d, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAlnum(tt.code); got != tt.want {
				t.Errorf("IsAlnum(0x%x) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsSpace(t *testing.T) {
	tests := []struct {
		name string
		code uint32
		want bool
	}{
		{"space", XK_space, true},
		{"return", XK_Return, true},
		{"keypad enter", XK_KP_Enter, true},
		{"tab", XK_Tab, false},
		{"letter", XK_a, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSpace(tt.code); got != tt.want {
				t.Errorf("IsSpace(0x%x) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsSelection(t *testing.T) {
	for code := XK_0; code <= XK_9; code++ {
		if !IsSelection(code) {
			t.Errorf("IsSelection(0x%x) = false for digit", code)
		}
	}
	for _, code := range []uint32{XK_space, XK_Return, XK_KP_Enter} {
		if !IsSelection(code) {
			t.Errorf("IsSelection(0x%x) = false for space key", code)
		}
	}
	for _, code := range []uint32{XK_a, XK_Z, XK_Escape, XK_BackSpace} {
		if IsSelection(code) {
			t.Errorf("IsSelection(0x%x) = true, want false", code)
		}
	}
}

func TestToRune(t *testing.T) {
	tests := []struct {
		name string
		code uint32
		want rune
	}{
		{"space", XK_space, ' '},
		{"letter A", XK_A, 'A'},
		{"letter z", XK_z, 'z'},
		{"digit 7", 0x37, '7'},
		{"tilde", 0x7e, '~'},
		{"pound", 0xa3, '£'},
		{"unicode cjk", 0x01004e2d, '中'},
		{"unicode euro", 0x010020ac, '€'},
		{"return", XK_Return, 0},
		{"escape", XK_Escape, 0},
		{"control range", 0x1f, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToRune(tt.code); got != tt.want {
				t.Errorf("ToRune(0x%x) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		code uint32
		want string
	}{
		{XK_space, "space"},
		{XK_Return, "Return"},
		{XK_KP_Enter, "KP_Enter"},
		{XK_a, "a"},
		{0xffbe, "0xffbe"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Name(tt.code); got != tt.want {
				t.Errorf("Name(0x%x) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}
