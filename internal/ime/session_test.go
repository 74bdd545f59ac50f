package ime

import (
	"fmt"
	"testing"
)

func TestCommitHistoryBounded(t *testing.T) {
	h := NewCommitHistory(3)

	if h.LatestText() != "" {
		t.Error("empty history should have no latest text")
	}
	if _, ok := h.Latest(); ok {
		t.Error("empty history should have no latest record")
	}

	for i := 0; i < 5; i++ {
		h.Push(CommitTypeText, fmt.Sprintf("t%d", i))
	}

	if h.Len() != 3 {
		t.Fatalf("Len = %d, want 3", h.Len())
	}
	records := h.Records()
	for i, want := range []string{"t2", "t3", "t4"} {
		if records[i].Text != want {
			t.Errorf("record[%d] = %q, want %q", i, records[i].Text, want)
		}
	}
	if h.LatestText() != "t4" {
		t.Errorf("LatestText = %q, want t4", h.LatestText())
	}

	h.Clear()
	if h.Len() != 0 || h.LatestText() != "" {
		t.Error("Clear should drop all records")
	}
}

func TestCommitHistoryDefaultSize(t *testing.T) {
	h := NewCommitHistory(0)
	for i := 0; i < DefaultHistorySize+5; i++ {
		h.Push(CommitTypeRaw, "x")
	}
	if h.Len() != DefaultHistorySize {
		t.Errorf("Len = %d, want %d", h.Len(), DefaultHistorySize)
	}
}

func TestSessionOptions(t *testing.T) {
	initial := map[string]bool{"ascii_mode": true}
	s := NewSession(SessionOptions{AppID: "app", Options: initial})

	if s.ID == "" {
		t.Error("Session should have an ID")
	}
	if !s.Option("ascii_mode") {
		t.Error("ascii_mode should start on")
	}
	if s.Option("unknown") {
		t.Error("unknown options should be off")
	}

	if s.ToggleOption("ascii_mode") {
		t.Error("ToggleOption should return the new value")
	}
	if !initial["ascii_mode"] {
		t.Error("session must not modify the caller's option map")
	}

	s.SetOption("full_shape", true)
	if !s.Option("full_shape") {
		t.Error("SetOption had no effect")
	}
}

func TestSessionImplementsContext(t *testing.T) {
	var ctx Context = NewSession(SessionOptions{})

	ctx.SetInput(" a")
	if ctx.Input() != " a" {
		t.Errorf("Input = %q", ctx.Input())
	}
	if ctx.CommitHistory().LatestText() != "" {
		t.Error("new session should have empty history")
	}
}
