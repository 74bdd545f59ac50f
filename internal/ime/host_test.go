package ime

import (
	"errors"
	"testing"

	"copilot/internal/keysym"
	"copilot/internal/metrics"
)

type recordingSink struct {
	commits  []string
	preedits []string
}

func (s *recordingSink) CommitText(text string) {
	s.commits = append(s.commits, text)
}

func (s *recordingSink) UpdatePreedit(text string, cursor int) {
	s.preedits = append(s.preedits, text)
}

type menuSink struct {
	recordingSink
	menus [][]*Candidate
}

func (s *menuSink) UpdateMenu(cands []*Candidate) {
	s.menus = append(s.menus, cands)
}

var testTable = map[string][]string{
	"ni":    {"你", "尼"},
	"hao":   {"好"},
	"nihao": {"你好"},
}

func newTestHost(t *testing.T, opts ...HostOption) (*Host, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	opts = append([]HostOption{
		WithSink(sink),
		WithTranslator(NewTableTranslator(testTable)),
		WithMetrics(metrics.NewHost(metrics.NewRegistry(""))),
	}, opts...)
	h := NewHost(opts...)
	if err := h.StartSession(SessionOptions{AppID: "test"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	return h, sink
}

func typeString(h *Host, s string) {
	for _, r := range s {
		h.ProcessKey(NewKeyEvent(uint32(r), 0))
	}
}

func TestHostSessionLifecycle(t *testing.T) {
	h := NewHost()

	if h.Context() != nil {
		t.Fatal("Context should be nil without a session")
	}

	if err := h.StartSession(SessionOptions{}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if !h.HasActiveSession() {
		t.Error("Expected active session")
	}
	if h.Session().AppID != "unknown" || h.Session().DocID != "unknown" {
		t.Errorf("Expected default IDs, got %q/%q", h.Session().AppID, h.Session().DocID)
	}
	if h.Context() == nil {
		t.Error("Context should be non-nil with a session")
	}

	if err := h.StartSession(SessionOptions{AppID: "other"}); err == nil {
		t.Error("Expected error for double StartSession")
	}

	s, err := h.EndSession()
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if s.ID == "" {
		t.Error("Session should have an ID")
	}
	if h.Context() != nil {
		t.Error("Context should be nil after EndSession")
	}

	if _, err := h.EndSession(); err != ErrNoSession {
		t.Errorf("Expected ErrNoSession, got %v", err)
	}
}

func TestHostComposeAndSelectFirst(t *testing.T) {
	h, sink := newTestHost(t)

	typeString(h, "ni")
	if got := h.Session().Input(); got != "ni" {
		t.Fatalf("Input = %q, want %q", got, "ni")
	}
	if last := sink.preedits[len(sink.preedits)-1]; last != "ni" {
		t.Errorf("Preedit = %q, want %q", last, "ni")
	}

	if res := h.ProcessKey(NewKeyEvent(keysym.XK_space, 0)); res != Accepted {
		t.Fatalf("space = %v, want accepted", res)
	}

	if len(sink.commits) != 1 || sink.commits[0] != "你" {
		t.Fatalf("Commits = %q", sink.commits)
	}
	if h.Session().Input() != "" {
		t.Error("Input should be cleared after commit")
	}
	rec, ok := h.Session().History().Latest()
	if !ok || rec.Type != CommitTypeCandidate || rec.Text != "你" {
		t.Errorf("Latest record = %+v", rec)
	}
}

func TestHostDigitSelectsCandidate(t *testing.T) {
	h, sink := newTestHost(t)

	typeString(h, "ni")
	if res := h.ProcessKey(NewKeyEvent('2', 0)); res != Accepted {
		t.Fatalf("digit = %v, want accepted", res)
	}
	if len(sink.commits) != 1 || sink.commits[0] != "尼" {
		t.Errorf("Commits = %q", sink.commits)
	}
}

func TestHostDigitWithoutComposition(t *testing.T) {
	h, sink := newTestHost(t)

	if res := h.ProcessKey(NewKeyEvent('7', 0)); res != Accepted {
		t.Fatalf("digit = %v, want accepted", res)
	}
	if len(sink.commits) != 1 || sink.commits[0] != "7" {
		t.Errorf("Commits = %q", sink.commits)
	}
}

func TestHostSpaceWithoutCandidatesCommitsRaw(t *testing.T) {
	h, sink := newTestHost(t)

	typeString(h, "xyz")
	h.ProcessKey(NewKeyEvent(keysym.XK_space, 0))

	if len(sink.commits) != 1 || sink.commits[0] != "xyz" {
		t.Errorf("Commits = %q", sink.commits)
	}
	if rec, _ := h.Session().History().Latest(); rec.Type != CommitTypeRaw {
		t.Errorf("Type = %q, want %q", rec.Type, CommitTypeRaw)
	}
}

func TestHostReturnCommitsRaw(t *testing.T) {
	h, sink := newTestHost(t)

	typeString(h, "ni")
	h.ProcessKey(NewKeyEvent(keysym.XK_Return, 0))

	if len(sink.commits) != 1 || sink.commits[0] != "ni" {
		t.Errorf("Commits = %q", sink.commits)
	}
}

func TestHostEmptyCompositionPassesThrough(t *testing.T) {
	h, _ := newTestHost(t)

	for _, sym := range []uint32{
		keysym.XK_space, keysym.XK_Return, keysym.XK_KP_Enter,
		keysym.XK_BackSpace, keysym.XK_Escape, keysym.XK_Tab,
	} {
		if res := h.ProcessKey(NewKeyEvent(sym, 0)); res != Noop {
			t.Errorf("%s = %v, want noop", keysym.Name(sym), res)
		}
	}
}

func TestHostBackspaceAndEscape(t *testing.T) {
	h, _ := newTestHost(t)

	typeString(h, "nih")
	h.ProcessKey(NewKeyEvent(keysym.XK_BackSpace, 0))
	if got := h.Session().Input(); got != "ni" {
		t.Errorf("Input after backspace = %q, want %q", got, "ni")
	}

	h.ProcessKey(NewKeyEvent(keysym.XK_Escape, 0))
	if got := h.Session().Input(); got != "" {
		t.Errorf("Input after escape = %q, want empty", got)
	}
}

func TestHostBackspaceMultibyte(t *testing.T) {
	h, _ := newTestHost(t)

	h.Session().SetInput("a你")
	h.ProcessKey(NewKeyEvent(keysym.XK_BackSpace, 0))
	if got := h.Session().Input(); got != "a" {
		t.Errorf("Input = %q, want %q", got, "a")
	}
}

func TestHostPunctuationCommitsComposition(t *testing.T) {
	h, sink := newTestHost(t)

	typeString(h, "ni,")

	want := []string{"你", ","}
	if len(sink.commits) != len(want) {
		t.Fatalf("Commits = %q, want %q", sink.commits, want)
	}
	for i := range want {
		if sink.commits[i] != want[i] {
			t.Errorf("commit[%d] = %q, want %q", i, sink.commits[i], want[i])
		}
	}
	if rec, _ := h.Session().History().Latest(); rec.Type != CommitTypePunct {
		t.Errorf("Type = %q, want %q", rec.Type, CommitTypePunct)
	}
}

func TestHostASCIIMode(t *testing.T) {
	h, sink := newTestHost(t, WithDefaultOptions(map[string]bool{"ascii_mode": true}))

	typeString(h, "ab")

	if len(sink.commits) != 2 || sink.commits[0] != "a" || sink.commits[1] != "b" {
		t.Errorf("Commits = %q", sink.commits)
	}
	if h.Session().Input() != "" {
		t.Error("ascii mode should not compose")
	}
	if rec, _ := h.Session().History().Latest(); rec.Type != CommitTypeASCII {
		t.Errorf("Type = %q, want %q", rec.Type, CommitTypeASCII)
	}
}

func TestHostCustomASCIIModeOption(t *testing.T) {
	h, sink := newTestHost(t, WithASCIIModeOption("latin"))

	if _, err := h.ToggleOption("latin"); err != nil {
		t.Fatal(err)
	}
	typeString(h, "a")
	if len(sink.commits) != 1 || sink.commits[0] != "a" {
		t.Errorf("Commits = %q", sink.commits)
	}
}

func TestHostModifiersPassThrough(t *testing.T) {
	h, _ := newTestHost(t)

	for _, mod := range []Modifier{ModControl, ModAlt, ModSuper} {
		if res := h.ProcessKey(NewKeyEvent('a', mod)); res != Noop {
			t.Errorf("mod %d: got %v, want noop", mod, res)
		}
	}
	if res := h.ProcessKey(NewKeyEvent('A', ModShift)); res != Accepted {
		t.Errorf("Shift+A: got %v, want accepted", res)
	}
}

func TestHostReleaseIgnored(t *testing.T) {
	h, _ := newTestHost(t)

	called := false
	h.AddProcessor(ProcessorFunc(func(KeyEvent) ProcessResult {
		called = true
		return Accepted
	}))

	ev := KeyEventFromState('a', 0, uint32(ModRelease))
	if res := h.ProcessKey(ev); res != Noop {
		t.Errorf("release = %v, want noop", res)
	}
	if called {
		t.Error("processors must not see release events")
	}
}

func TestHostProcessorOrder(t *testing.T) {
	m := metrics.NewHost(metrics.NewRegistry(""))
	h, _ := newTestHost(t, WithMetrics(m))

	var order []string
	h.AddProcessor(ProcessorFunc(func(KeyEvent) ProcessResult {
		order = append(order, "first")
		return Noop
	}))
	h.AddProcessor(ProcessorFunc(func(ev KeyEvent) ProcessResult {
		order = append(order, "second")
		if ev.Keysym == 'x' {
			return Accepted
		}
		return Noop
	}))
	h.AddProcessor(ProcessorFunc(func(KeyEvent) ProcessResult {
		order = append(order, "third")
		return Noop
	}))

	if res := h.ProcessKey(NewKeyEvent('x', 0)); res != Accepted {
		t.Fatalf("got %v, want accepted", res)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v", order)
	}
	if h.Session().Input() != "" {
		t.Error("accepted key must skip default handling")
	}

	order = nil
	h.ProcessKey(NewKeyEvent('y', 0))
	if len(order) != 3 {
		t.Errorf("order = %v", order)
	}
	if h.Session().Input() != "y" {
		t.Errorf("Input = %q, want %q", h.Session().Input(), "y")
	}

	if got := m.KeysTotal.Value(); got != 2 {
		t.Errorf("KeysTotal = %d, want 2", got)
	}
	if got := m.AcceptedTotal.Value(); got != 1 {
		t.Errorf("AcceptedTotal = %d, want 1", got)
	}
}

func TestHostProcessorCallsBackIntoHost(t *testing.T) {
	h, sink := newTestHost(t)

	h.AddProcessor(ProcessorFunc(func(ev KeyEvent) ProcessResult {
		ctx := h.Context()
		if ctx == nil || ev.Keysym != 'q' {
			return Noop
		}
		ctx.SetInput(" q")
		h.CommitText("!")
		return Accepted
	}))

	h.ProcessKey(NewKeyEvent('q', 0))

	if h.Session().Input() != " q" {
		t.Errorf("Input = %q", h.Session().Input())
	}
	if len(sink.commits) != 1 || sink.commits[0] != "!" {
		t.Errorf("Commits = %q", sink.commits)
	}
	if got := h.Session().History().LatestText(); got != "!" {
		t.Errorf("LatestText = %q", got)
	}
	if last := sink.preedits[len(sink.preedits)-1]; last != " q" {
		t.Errorf("Preedit = %q, want %q", last, " q")
	}
}

func TestHostWithoutSession(t *testing.T) {
	sink := &recordingSink{}
	h := NewHost(WithSink(sink))

	if res := h.ProcessKey(NewKeyEvent('a', 0)); res != Noop {
		t.Errorf("got %v, want noop", res)
	}
	if h.Select(0) {
		t.Error("Select should fail without a session")
	}
	if _, err := h.ToggleOption("ascii_mode"); err != ErrNoSession {
		t.Errorf("ToggleOption err = %v", err)
	}

	h.CommitText("x")
	if len(sink.commits) != 1 {
		t.Error("CommitText should reach the sink without a session")
	}
}

type filterFunc func(Translation, *CandidateList) Translation

func (f filterFunc) Apply(t Translation, c *CandidateList) Translation { return f(t, c) }

func TestHostFilterAndPageSize(t *testing.T) {
	var gotList *CandidateList
	drop := filterFunc(func(t Translation, c *CandidateList) Translation {
		gotList = c
		return func(yield func(*Candidate) bool) {
			for cand := range t {
				if cand.Text == "你" {
					continue
				}
				if !yield(cand) {
					return
				}
			}
		}
	})
	h, _ := newTestHost(t, WithFilter(drop), WithPageSize(1))

	typeString(h, "ni")
	cands := h.Candidates()

	if len(cands) != 1 || cands[0].Text != "尼" {
		t.Fatalf("Candidates = %v", cands)
	}
	if gotList != h.Menu() {
		t.Error("filter should receive the host's candidate list")
	}
}

type closingFilter struct {
	filterFunc
	closed bool
	err    error
}

func (f *closingFilter) Close() error {
	f.closed = true
	return f.err
}

func TestHostClose(t *testing.T) {
	f := &closingFilter{filterFunc: func(t Translation, _ *CandidateList) Translation { return t }}
	h, _ := newTestHost(t, WithFilter(f))

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if h.HasActiveSession() {
		t.Error("Close should end the session")
	}
	if !f.closed {
		t.Error("Close should close the filter")
	}

	// No active session is left to end.
	if err := h.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestHostCloseReportsFilterError(t *testing.T) {
	closeErr := errors.New("state busy")
	f := &closingFilter{
		filterFunc: func(t Translation, _ *CandidateList) Translation { return t },
		err:        closeErr,
	}
	h, _ := newTestHost(t, WithFilter(f))

	err := h.Close()
	if !errors.Is(err, closeErr) {
		t.Fatalf("expected filter close error, got %v", err)
	}
	if h.HasActiveSession() {
		t.Error("Close should end the session even when the filter fails")
	}
}

func TestHostMenuSink(t *testing.T) {
	sink := &menuSink{}
	h := NewHost(WithSink(sink), WithTranslator(NewTableTranslator(testTable)))
	if err := h.StartSession(SessionOptions{}); err != nil {
		t.Fatal(err)
	}

	typeString(h, "hao")

	last := sink.menus[len(sink.menus)-1]
	if len(last) != 1 || last[0].Text != "好" {
		t.Errorf("menu = %v", last)
	}

	h.Reset()
	if last := sink.menus[len(sink.menus)-1]; len(last) != 0 {
		t.Errorf("menu after reset = %v", last)
	}
}

func TestTableTranslator(t *testing.T) {
	tr := NewTableTranslator(map[string][]string{"NiHao": {"你好", "您好"}})

	cands := tr.Translate(" nihao").Collect(0)
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2", len(cands))
	}
	if cands[0].Start != 1 || cands[0].End != 6 {
		t.Errorf("range = [%d,%d), want [1,6)", cands[0].Start, cands[0].End)
	}
	if cands[0].Quality <= cands[1].Quality {
		t.Error("earlier phrases should rank higher")
	}

	if got := tr.Translate("zzz").Collect(0); len(got) != 0 {
		t.Errorf("unknown code yielded %v", got)
	}
}
