package ime

import (
	"time"

	"github.com/google/uuid"
)

// DefaultHistorySize is the number of commit records a session keeps.
const DefaultHistorySize = 20

// CommitRecord is one entry in the commit history.
type CommitRecord struct {
	// Type tags the origin of the text ("raw", "candidate", "punct", ...).
	Type string

	// Text is the committed text.
	Text string
}

// CommitHistory is a bounded record of committed text, newest last.
type CommitHistory struct {
	records []CommitRecord
	size    int
}

// NewCommitHistory creates a history keeping at most size records.
func NewCommitHistory(size int) *CommitHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &CommitHistory{
		records: make([]CommitRecord, 0, size),
		size:    size,
	}
}

// Push appends a record, dropping the oldest one when full.
func (h *CommitHistory) Push(typ, text string) {
	if len(h.records) == h.size {
		copy(h.records, h.records[1:])
		h.records = h.records[:len(h.records)-1]
	}
	h.records = append(h.records, CommitRecord{Type: typ, Text: text})
}

// LatestText returns the text of the newest record, or "".
func (h *CommitHistory) LatestText() string {
	if len(h.records) == 0 {
		return ""
	}
	return h.records[len(h.records)-1].Text
}

// Latest returns the newest record and whether there is one.
func (h *CommitHistory) Latest() (CommitRecord, bool) {
	if len(h.records) == 0 {
		return CommitRecord{}, false
	}
	return h.records[len(h.records)-1], true
}

// Len returns the number of records.
func (h *CommitHistory) Len() int {
	return len(h.records)
}

// Records returns a copy of the records, oldest first.
func (h *CommitHistory) Records() []CommitRecord {
	result := make([]CommitRecord, len(h.records))
	copy(result, h.records)
	return result
}

// Clear drops all records.
func (h *CommitHistory) Clear() {
	h.records = h.records[:0]
}

// SessionOptions identifies the input field a session belongs to.
type SessionOptions struct {
	// AppID identifies the application (bundle ID, desktop file, etc.)
	AppID string

	// DocID identifies the document or text field.
	DocID string

	// HistorySize bounds the commit history (DefaultHistorySize if <= 0).
	HistorySize int

	// Options are the initial values of boolean switches.
	Options map[string]bool
}

// Session is the in-memory editing context of one focused input field.
// It is not safe for concurrent use; the owning Host serialises access.
type Session struct {
	ID        string
	StartTime time.Time
	AppID     string
	DocID     string

	options map[string]bool
	input   string
	history *CommitHistory
}

// NewSession creates a session with an empty composition buffer.
func NewSession(opts SessionOptions) *Session {
	options := make(map[string]bool, len(opts.Options))
	for k, v := range opts.Options {
		options[k] = v
	}
	return &Session{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
		AppID:     opts.AppID,
		DocID:     opts.DocID,
		options:   options,
		history:   NewCommitHistory(opts.HistorySize),
	}
}

// Option returns the value of a boolean switch; unknown switches are false.
func (s *Session) Option(name string) bool {
	return s.options[name]
}

// SetOption sets a boolean switch.
func (s *Session) SetOption(name string, value bool) {
	s.options[name] = value
}

// ToggleOption flips a boolean switch and returns the new value.
func (s *Session) ToggleOption(name string) bool {
	s.options[name] = !s.options[name]
	return s.options[name]
}

// Input returns the composition buffer.
func (s *Session) Input() string {
	return s.input
}

// SetInput replaces the composition buffer.
func (s *Session) SetInput(input string) {
	s.input = input
}

// CommitHistory returns the session's commit history.
func (s *Session) CommitHistory() History {
	return s.history
}

// History returns the concrete commit history.
func (s *Session) History() *CommitHistory {
	return s.history
}
