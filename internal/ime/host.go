package ime

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"copilot/internal/keysym"
	"copilot/internal/metrics"
)

// DefaultPageSize is the number of candidates shown at once.
const DefaultPageSize = 9

// DefaultASCIIModeOption is the switch that selects direct Latin input.
const DefaultASCIIModeOption = "ascii_mode"

// Commit record types.
const (
	CommitTypeText      = "text"
	CommitTypeRaw       = "raw"
	CommitTypeCandidate = "candidate"
	CommitTypePunct     = "punct"
	CommitTypeASCII     = "ascii"
)

// ErrNoSession is returned by operations that need an active session.
var ErrNoSession = errors.New("no active session")

// Sink receives what the host sends to the client application.
type Sink interface {
	// CommitText inserts text into the client.
	CommitText(text string)

	// UpdatePreedit shows the composition buffer with the cursor at the
	// given rune offset. An empty text hides the preedit.
	UpdatePreedit(text string, cursor int)
}

// MenuSink is implemented by sinks that can show a candidate menu. The host
// sends the first page every time the composition buffer changes.
type MenuSink interface {
	UpdateMenu(candidates []*Candidate)
}

type nopSink struct{}

func (nopSink) CommitText(string)         {}
func (nopSink) UpdatePreedit(string, int) {}

// HostOption configures a Host.
type HostOption func(*Host)

// WithSink sets where commits and preedit updates go.
func WithSink(s Sink) HostOption {
	return func(h *Host) {
		if s != nil {
			h.sink = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HostOption {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetrics records host metrics into m.
func WithMetrics(m *metrics.Host) HostOption {
	return func(h *Host) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithTranslator sets the translator that turns the composition buffer
// into candidates.
func WithTranslator(t Translator) HostOption {
	return func(h *Host) {
		h.translator = t
	}
}

// WithFilter sets the filter applied to every translation.
func WithFilter(f Filter) HostOption {
	return func(h *Host) {
		h.filter = f
	}
}

// WithPageSize sets the number of candidates per page.
func WithPageSize(n int) HostOption {
	return func(h *Host) {
		if n > 0 {
			h.pageSize = n
		}
	}
}

// WithDefaultOptions sets the switches of sessions started without options.
func WithDefaultOptions(options map[string]bool) HostOption {
	return func(h *Host) {
		h.defaultOptions = options
	}
}

// WithASCIIModeOption sets the name of the direct Latin input switch.
func WithASCIIModeOption(name string) HostOption {
	return func(h *Host) {
		if name != "" {
			h.asciiModeOption = name
		}
	}
}

// Host is an in-memory input method: it owns the editing session, runs key
// processors, composes Latin input and pages filtered candidates.
//
// Host is not safe for concurrent use. Processors call back into the Host
// (Context, CommitText) while ProcessKey runs, so callers that share a Host
// between goroutines must serialise every call.
type Host struct {
	session    *Session
	processors []Processor
	translator Translator
	filter     Filter
	menu       *CandidateList

	sink            Sink
	logger          *slog.Logger
	metrics         *metrics.Host
	pageSize        int
	asciiModeOption string
	defaultOptions  map[string]bool
}

// NewHost creates a host with no active session.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		menu:            NewCandidateList(),
		sink:            nopSink{},
		logger:          slog.New(slog.DiscardHandler),
		pageSize:        DefaultPageSize,
		asciiModeOption: DefaultASCIIModeOption,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.NewHost(nil)
	}
	return h
}

// StartSession begins editing a new input field.
func (h *Host) StartSession(opts SessionOptions) error {
	if opts.AppID == "" {
		opts.AppID = "unknown"
	}
	if opts.DocID == "" {
		opts.DocID = "unknown"
	}
	if opts.Options == nil {
		opts.Options = h.defaultOptions
	}

	if h.session != nil {
		return errors.New("session already active; call EndSession first")
	}

	h.session = NewSession(opts)
	h.menu.Clear()
	h.metrics.SessionsStarted.Inc()
	h.logger.Debug("session started",
		"session", h.session.ID, "app", opts.AppID, "doc", opts.DocID)
	return nil
}

// EndSession discards the active session and returns it.
func (h *Host) EndSession() (*Session, error) {
	if h.session == nil {
		return nil, ErrNoSession
	}
	s := h.session
	h.session = nil
	h.refresh()
	h.logger.Debug("session ended",
		"session", s.ID, "commits", s.History().Len(), "elapsed", time.Since(s.StartTime))
	return s, nil
}

// HasActiveSession reports whether a session is active.
func (h *Host) HasActiveSession() bool {
	return h.session != nil
}

// Session returns the active session, or nil.
func (h *Host) Session() *Session {
	return h.session
}

// Context implements Engine. It returns nil when no session is active.
func (h *Host) Context() Context {
	if h.session == nil {
		return nil
	}
	return h.session
}

// CommitText implements Engine.
func (h *Host) CommitText(text string) {
	h.commit(CommitTypeText, text)
}

// SetFilter replaces the filter applied to every translation. Filters that
// need the host as their engine are built after the host and set here.
func (h *Host) SetFilter(f Filter) {
	h.filter = f
}

// Close ends the active session and closes the filter if it implements
// io.Closer.
func (h *Host) Close() error {
	var errs []error
	if _, err := h.EndSession(); err != nil && !errors.Is(err, ErrNoSession) {
		errs = append(errs, err)
	}
	if c, ok := h.filter.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close filter: %w", err))
		}
	}
	return errors.Join(errs...)
}

// AddProcessor appends a processor. Processors see each key in the order
// they were added.
func (h *Host) AddProcessor(p Processor) {
	h.processors = append(h.processors, p)
}

// ProcessKey offers the event to every processor until one accepts it, then
// falls back to the default composition handling.
func (h *Host) ProcessKey(ev KeyEvent) ProcessResult {
	if ev.Release {
		return Noop
	}
	h.metrics.KeysTotal.Inc()

	for _, p := range h.processors {
		if p.Process(ev) == Accepted {
			h.metrics.AcceptedTotal.Inc()
			h.logger.Debug("key accepted by processor", "sym", keysym.Name(ev.Keysym))
			h.refresh()
			return Accepted
		}
	}

	if h.session == nil {
		return Noop
	}
	return h.handleKey(ev)
}

func (h *Host) handleKey(ev KeyEvent) ProcessResult {
	if ev.Modifiers&(ModControl|ModAlt|ModSuper) != 0 {
		return Noop
	}

	s := h.session
	input := s.Input()

	switch ev.Keysym {
	case keysym.XK_BackSpace:
		if input == "" {
			return Noop
		}
		_, size := utf8.DecodeLastRuneInString(input)
		s.SetInput(input[:len(input)-size])
		h.refresh()
		return Accepted

	case keysym.XK_Escape:
		if input == "" {
			return Noop
		}
		s.SetInput("")
		h.refresh()
		return Accepted

	case keysym.XK_Return, keysym.XK_KP_Enter:
		if input == "" {
			return Noop
		}
		h.commitInput(CommitTypeRaw, input)
		return Accepted

	case keysym.XK_space:
		if input == "" {
			return Noop
		}
		if !h.Select(0) {
			h.commitInput(CommitTypeRaw, input)
		}
		return Accepted
	}

	if input != "" && keysym.IsDigit(ev.Keysym) {
		if h.Select(selectionIndex(ev.Keysym)) {
			return Accepted
		}
	}

	r := ev.Char()
	if r == 0 {
		return Noop
	}

	if s.Option(h.asciiModeOption) {
		if input != "" {
			h.commitInput(CommitTypeRaw, input)
		}
		h.commit(CommitTypeASCII, string(r))
		return Accepted
	}

	if keysym.IsAlnum(ev.Keysym) && !keysym.IsDigit(ev.Keysym) {
		s.SetInput(input + string(r))
		h.refresh()
		return Accepted
	}

	if input != "" && !h.Select(0) {
		h.commitInput(CommitTypeRaw, input)
	}
	h.commit(CommitTypePunct, string(r))
	return Accepted
}

// selectionIndex maps digit keys 1..9,0 to candidate indexes 0..9.
func selectionIndex(sym uint32) int {
	if sym == keysym.XK_0 {
		return 9
	}
	return int(sym - keysym.XK_0 - 1)
}

// Candidates translates the composition buffer, runs the filter and returns
// the first page.
func (h *Host) Candidates() []*Candidate {
	h.menu.Clear()
	if h.session == nil || h.session.Input() == "" || h.translator == nil {
		return nil
	}

	start := time.Now()
	defer h.metrics.FilterDuration.Since(start)

	t := h.translator.Translate(h.session.Input())
	if h.filter != nil {
		t = h.filter.Apply(t, h.menu)
	}
	for _, c := range t.Collect(h.pageSize) {
		h.menu.Append(c)
	}
	return h.menu.Items()
}

// Menu returns the candidates last computed by Candidates.
func (h *Host) Menu() *CandidateList {
	return h.menu
}

// Select commits the candidate at index i of the current page. It returns
// false if there is no such candidate.
func (h *Host) Select(i int) bool {
	if h.session == nil {
		return false
	}
	if h.menu.Len() == 0 {
		h.Candidates()
	}
	c := h.menu.At(i)
	if c == nil {
		return false
	}
	h.commitInput(CommitTypeCandidate, c.Text)
	return true
}

// Reset clears the composition buffer and the candidate page.
func (h *Host) Reset() {
	if h.session != nil {
		h.session.SetInput("")
	}
	h.refresh()
}

// ToggleOption flips a switch of the active session.
func (h *Host) ToggleOption(name string) (bool, error) {
	if h.session == nil {
		return false, ErrNoSession
	}
	v := h.session.ToggleOption(name)
	h.logger.Info("option toggled", "option", name, "value", v)
	return v, nil
}

// ASCIIModeOption returns the name of the direct Latin input switch.
func (h *Host) ASCIIModeOption() string {
	return h.asciiModeOption
}

func (h *Host) commitInput(typ, text string) {
	h.session.SetInput("")
	h.commit(typ, text)
	h.refresh()
}

func (h *Host) commit(typ, text string) {
	if text == "" {
		return
	}
	if h.session != nil {
		h.session.History().Push(typ, text)
	}
	h.metrics.CommitsTotal.Inc()
	h.logger.Debug("commit", "type", typ, "text", text)
	h.sink.CommitText(text)
}

func (h *Host) refresh() {
	h.menu.Clear()
	input := ""
	if h.session != nil {
		input = h.session.Input()
	}
	h.sink.UpdatePreedit(input, utf8.RuneCountInString(input))
	if ms, ok := h.sink.(MenuSink); ok {
		ms.UpdateMenu(h.Candidates())
	}
}

// TableTranslator looks the composition buffer up in a fixed code table.
// Leading spaces in the buffer are ignored.
type TableTranslator struct {
	table map[string][]string
}

// NewTableTranslator creates a translator over code → phrases.
func NewTableTranslator(table map[string][]string) *TableTranslator {
	t := &TableTranslator{table: make(map[string][]string, len(table))}
	for code, phrases := range table {
		t.table[strings.ToLower(code)] = phrases
	}
	return t
}

// Translate implements Translator.
func (t *TableTranslator) Translate(input string) Translation {
	code := strings.TrimLeft(input, " ")
	phrases := t.table[strings.ToLower(code)]
	start := len(input) - len(code)
	return func(yield func(*Candidate) bool) {
		for i, p := range phrases {
			c := &Candidate{
				Type:    "phrase",
				Text:    p,
				Start:   start,
				End:     len(input),
				Quality: float64(len(phrases) - i),
			}
			if !yield(c) {
				return
			}
		}
	}
}
