//go:build linux

package ime

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

// IBus D-Bus constants
const (
	IBusService          = "org.freedesktop.IBus"
	IBusFactoryInterface = "org.freedesktop.IBus.Factory"
	IBusEngineInterface  = "org.freedesktop.IBus.Engine"
	IBusServiceInterface = "org.freedesktop.IBus.Service"
	IBusFactoryPath      = dbus.ObjectPath("/org/freedesktop/IBus/Factory")

	CopilotBusName       = "org.copilot.IBus"
	CopilotEngineName    = "copilot"
	CopilotEngineVersion = "1.0.0"

	enginePathPrefix = "/org/freedesktop/IBus/Engine/copilot/"
)

// ibusPreeditClear drops the preedit when the client loses focus.
const ibusPreeditClear uint32 = 0

// busConn is the part of *dbus.Conn the engine needs.
type busConn interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
	Export(v interface{}, path dbus.ObjectPath, iface string) error
}

// ibusText is the serialised form of IBusText: (sa{sv}sv).
type ibusText struct {
	Name        string
	Attachments map[string]dbus.Variant
	Text        string
	AttrList    dbus.Variant
}

// ibusAttrList is the serialised form of IBusAttrList: (sa{sv}av).
type ibusAttrList struct {
	Name        string
	Attachments map[string]dbus.Variant
	Attributes  []dbus.Variant
}

// ibusLookupTable is the serialised form of IBusLookupTable: (sa{sv}uubbiavav).
type ibusLookupTable struct {
	Name          string
	Attachments   map[string]dbus.Variant
	PageSize      uint32
	CursorPos     uint32
	CursorVisible bool
	Round         bool
	Orientation   int32
	Candidates    []dbus.Variant
	Labels        []dbus.Variant
}

func newIBusText(s string) dbus.Variant {
	return dbus.MakeVariant(ibusText{
		Name:        "IBusText",
		Attachments: map[string]dbus.Variant{},
		Text:        s,
		AttrList: dbus.MakeVariant(ibusAttrList{
			Name:        "IBusAttrList",
			Attachments: map[string]dbus.Variant{},
			Attributes:  []dbus.Variant{},
		}),
	})
}

func newIBusLookupTable(cands []*Candidate) dbus.Variant {
	table := ibusLookupTable{
		Name:          "IBusLookupTable",
		Attachments:   map[string]dbus.Variant{},
		PageSize:      uint32(len(cands)),
		CursorVisible: true,
		Orientation:   -1, // system default
		Candidates:    make([]dbus.Variant, 0, len(cands)),
		Labels:        make([]dbus.Variant, 0, len(cands)),
	}
	for i, c := range cands {
		table.Candidates = append(table.Candidates, newIBusText(c.Text))
		table.Labels = append(table.Labels, newIBusText(fmt.Sprintf("%d", (i+1)%10)))
	}
	return dbus.MakeVariant(table)
}

// ibusSink emits the engine's output as IBus engine signals.
type ibusSink struct {
	conn   busConn
	path   dbus.ObjectPath
	logger *slog.Logger
}

func (s *ibusSink) emit(name string, values ...interface{}) {
	if err := s.conn.Emit(s.path, IBusEngineInterface+"."+name, values...); err != nil {
		s.logger.Warn("emit signal failed", "signal", name, "error", err)
	}
}

func (s *ibusSink) CommitText(text string) {
	s.emit("CommitText", newIBusText(text))
}

func (s *ibusSink) UpdatePreedit(text string, cursor int) {
	s.emit("UpdatePreeditText", newIBusText(text), uint32(cursor), text != "", ibusPreeditClear)
}

func (s *ibusSink) UpdateMenu(cands []*Candidate) {
	if len(cands) == 0 {
		s.emit("HideLookupTable")
		return
	}
	s.emit("UpdateLookupTable", newIBusLookupTable(cands), true)
}

// HostFactory builds the Host behind one engine instance. The sink routes the
// host's output to the engine's D-Bus signals.
type HostFactory func(sink Sink) *Host

// IBusEngine exports one Host as an org.freedesktop.IBus.Engine object.
// D-Bus calls arrive on separate goroutines; every call holds mu while it
// uses the Host.
type IBusEngine struct {
	conn      busConn
	path      dbus.ObjectPath
	logger    *slog.Logger
	onDestroy func(dbus.ObjectPath)

	mu      sync.Mutex
	host    *Host
	enabled bool
	focused bool
}

func newIBusEngine(conn busConn, path dbus.ObjectPath, newHost HostFactory, logger *slog.Logger) *IBusEngine {
	logger = logger.With("engine", string(path))
	sink := &ibusSink{conn: conn, path: path, logger: logger}
	return &IBusEngine{
		conn:    conn,
		path:    path,
		logger:  logger,
		host:    newHost(sink),
		enabled: true,
	}
}

// Path returns the engine's object path.
func (e *IBusEngine) Path() dbus.ObjectPath {
	return e.path
}

// Focused reports whether the engine has input focus.
func (e *IBusEngine) Focused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focused
}

// ensureSession starts a session if none is active. Callers hold mu.
func (e *IBusEngine) ensureSession() {
	if e.host.HasActiveSession() {
		return
	}
	if err := e.host.StartSession(SessionOptions{}); err != nil {
		e.logger.Error("start session failed", "error", err)
	}
}

// ProcessKeyEvent handles key press/release events from IBus.
// Returns true if the key was consumed, false to pass through.
func (e *IBusEngine) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	ev := KeyEventFromState(keyval, keycode, state)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return false, nil
	}
	e.ensureSession()

	res := e.host.ProcessKey(ev)
	e.logger.Debug("key processed", "sym", ev.String(), "result", res.String())
	return res == Accepted, nil
}

// FocusIn is called when the engine gains input focus.
func (e *IBusEngine) FocusIn() *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.focused = true
	e.ensureSession()
	return nil
}

// FocusOut is called when the engine loses input focus. The composition is
// dropped and the session ends.
func (e *IBusEngine) FocusOut() *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.focused = false
	e.endSession()
	return nil
}

// Enable is called when the engine is enabled.
func (e *IBusEngine) Enable() *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.enabled = true
	e.logger.Debug("enabled")
	return nil
}

// Disable is called when the engine is disabled.
func (e *IBusEngine) Disable() *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.enabled = false
	e.endSession()
	e.logger.Debug("disabled")
	return nil
}

// Reset clears the composition.
func (e *IBusEngine) Reset() *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.host.Reset()
	return nil
}

// PropertyActivate toggles the switch named by propName. Only the ascii
// mode switch is exposed.
func (e *IBusEngine) PropertyActivate(propName string, state uint32) *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if propName != e.host.ASCIIModeOption() {
		e.logger.Debug("unknown property", "property", propName, "state", state)
		return nil
	}
	e.ensureSession()
	if _, err := e.host.ToggleOption(propName); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// CandidateClicked commits the clicked candidate.
func (e *IBusEngine) CandidateClicked(index, button, state uint32) *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.host.Select(int(index))
	return nil
}

// SetCapabilities informs about client capabilities.
func (e *IBusEngine) SetCapabilities(caps uint32) *dbus.Error {
	e.logger.Debug("SetCapabilities", "caps", caps)
	return nil
}

// SetContentType informs about the type of content being edited.
func (e *IBusEngine) SetContentType(purpose, hints uint32) *dbus.Error {
	e.logger.Debug("SetContentType", "purpose", purpose, "hints", hints)
	return nil
}

// SetCursorLocation informs about cursor position.
func (e *IBusEngine) SetCursorLocation(x, y, w, h int32) *dbus.Error {
	return nil
}

// SetSurroundingText provides context around the cursor.
func (e *IBusEngine) SetSurroundingText(text dbus.Variant, cursorPos, anchorPos uint32) *dbus.Error {
	return nil
}

// PageUp is called when the user pages the candidate list up.
func (e *IBusEngine) PageUp() *dbus.Error {
	return nil
}

// PageDown is called when the user pages the candidate list down.
func (e *IBusEngine) PageDown() *dbus.Error {
	return nil
}

// CursorUp is called when the user moves the candidate cursor up.
func (e *IBusEngine) CursorUp() *dbus.Error {
	return nil
}

// CursorDown is called when the user moves the candidate cursor down.
func (e *IBusEngine) CursorDown() *dbus.Error {
	return nil
}

// Destroy ends the session and removes the engine from the bus.
func (e *IBusEngine) Destroy() *dbus.Error {
	e.mu.Lock()
	if err := e.host.Close(); err != nil {
		e.logger.Warn("close host failed", "error", err)
	}
	e.mu.Unlock()

	if err := e.conn.Export(nil, e.path, IBusEngineInterface); err != nil {
		return dbus.MakeFailedError(err)
	}
	if err := e.conn.Export(nil, e.path, IBusServiceInterface); err != nil {
		return dbus.MakeFailedError(err)
	}
	if e.onDestroy != nil {
		e.onDestroy(e.path)
	}
	return nil
}

// endSession ends the active session, if any. Callers hold mu.
func (e *IBusEngine) endSession() {
	if !e.host.HasActiveSession() {
		return
	}
	if _, err := e.host.EndSession(); err != nil {
		e.logger.Error("end session failed", "error", err)
	}
}

// IBusFactory implements the IBus Factory D-Bus interface. IBus calls
// CreateEngine once per input context that selects the engine.
type IBusFactory struct {
	conn       busConn
	engineName string
	newHost    HostFactory
	logger     *slog.Logger

	mu      sync.Mutex
	engines map[dbus.ObjectPath]*IBusEngine
}

// NewIBusFactory creates a factory serving engineName.
func NewIBusFactory(conn *dbus.Conn, engineName string, newHost HostFactory, logger *slog.Logger) *IBusFactory {
	return newIBusFactory(conn, engineName, newHost, logger)
}

func newIBusFactory(conn busConn, engineName string, newHost HostFactory, logger *slog.Logger) *IBusFactory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &IBusFactory{
		conn:       conn,
		engineName: engineName,
		newHost:    newHost,
		logger:     logger,
		engines:    make(map[dbus.ObjectPath]*IBusEngine),
	}
}

// Export publishes the factory object on the bus.
func (f *IBusFactory) Export() error {
	if err := f.conn.Export(f, IBusFactoryPath, IBusFactoryInterface); err != nil {
		return fmt.Errorf("export factory: %w", err)
	}
	return nil
}

// CreateEngine creates a new engine instance for IBus.
func (f *IBusFactory) CreateEngine(engineName string) (dbus.ObjectPath, *dbus.Error) {
	f.logger.Info("CreateEngine", "name", engineName)

	if engineName != f.engineName {
		return "", dbus.NewError("org.freedesktop.IBus.NoEngine",
			[]interface{}{"Unknown engine: " + engineName})
	}

	path := dbus.ObjectPath(enginePathPrefix + strings.ReplaceAll(uuid.NewString(), "-", "_"))
	engine := newIBusEngine(f.conn, path, f.newHost, f.logger)
	engine.onDestroy = f.forget

	if err := f.conn.Export(engine, path, IBusEngineInterface); err != nil {
		return "", dbus.MakeFailedError(err)
	}
	if err := f.conn.Export(engine, path, IBusServiceInterface); err != nil {
		return "", dbus.MakeFailedError(err)
	}

	f.mu.Lock()
	f.engines[path] = engine
	f.mu.Unlock()

	return path, nil
}

func (f *IBusFactory) forget(path dbus.ObjectPath) {
	f.mu.Lock()
	delete(f.engines, path)
	f.mu.Unlock()
}

// Engines returns the number of engines created and not yet closed.
func (f *IBusFactory) Engines() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

// Close destroys every engine the factory created.
func (f *IBusFactory) Close() error {
	f.mu.Lock()
	engines := f.engines
	f.engines = make(map[dbus.ObjectPath]*IBusEngine)
	f.mu.Unlock()

	var errs []error
	for path, e := range engines {
		if derr := e.Destroy(); derr != nil {
			errs = append(errs, fmt.Errorf("destroy %s: %s", path, derr.Error()))
		}
	}
	return errors.Join(errs...)
}
