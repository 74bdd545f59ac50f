// Package luastage provides filter stages scripted in Lua.
//
// A stage is configured as "lua@<path>". The script must define a global
// function
//
//	function transform(text, input, type)
//
// called once per candidate with the candidate text, the composition buffer
// and the candidate type. Returning a string replaces the candidate text,
// returning nil drops the candidate. Any other result, a runtime error or a
// timeout leaves the candidate unchanged; the failure is logged.
//
// Scripts run in a sandbox: only the base, table, string and math libraries
// are loaded, and dofile, loadfile, load and loadstring are removed.
package luastage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"copilot/internal/filter"
	"copilot/internal/ime"
)

// Class is the stage class name.
const Class = "lua"

// TransformFunc is the global the script must define.
const TransformFunc = "transform"

// DefaultTimeout bounds one transform call.
const DefaultTimeout = 50 * time.Millisecond

// Errors returned when loading a script.
var (
	ErrNoScript    = errors.New("lua stage needs a script path: lua@<path>")
	ErrNoTransform = errors.New("lua script does not define transform")
	ErrClosed      = errors.New("lua stage is closed")
)

func init() {
	filter.Register(Class, New)
}

// Stage runs candidates through a Lua transform function.
//
// gopher-lua states are not goroutine-safe; mu serialises every call.
type Stage struct {
	ticket  filter.Ticket
	name    string
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

// New is the filter.Creator for the lua stage. The script path is the
// ticket's namespace.
func New(ticket filter.Ticket) (filter.Stage, error) {
	if ticket.Namespace == "" {
		return nil, ErrNoScript
	}
	s := newStage(ticket, ticket.Namespace)
	if err := s.load(func(L *lua.LState) error { return L.DoFile(ticket.Namespace) }); err != nil {
		s.Close()
		return nil, fmt.Errorf("load %s: %w", ticket.Namespace, err)
	}
	return s, nil
}

// NewFromSource creates a stage from script source. name is used in logs
// and errors.
func NewFromSource(ticket filter.Ticket, name, source string) (*Stage, error) {
	s := newStage(ticket, name)
	if err := s.load(func(L *lua.LState) error { return L.DoString(source) }); err != nil {
		s.Close()
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return s, nil
}

func newStage(ticket filter.Ticket, name string) *Stage {
	logger := ticket.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Stage{
		ticket:  ticket,
		name:    name,
		timeout: timeoutOption(ticket.Options),
		logger:  logger,
		L:       newSandboxedState(),
	}
}

// timeoutOption reads "lua_timeout_ms" from the stage options.
func timeoutOption(opts map[string]any) time.Duration {
	switch v := opts["lua_timeout_ms"].(type) {
	case int:
		if v > 0 {
			return time.Duration(v) * time.Millisecond
		}
	case int64:
		if v > 0 {
			return time.Duration(v) * time.Millisecond
		}
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Millisecond))
		}
	}
	return DefaultTimeout
}

func newSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func (s *Stage) load(run func(*lua.LState) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	// The top-level chunk runs under the same budget as a transform call.
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	if err := run(s.L); err != nil {
		return err
	}
	if s.L.GetGlobal(TransformFunc).Type() != lua.LTFunction {
		return ErrNoTransform
	}
	return nil
}

// Apply implements filter.Stage.
func (s *Stage) Apply(t ime.Translation) ime.Translation {
	if t == nil {
		return nil
	}
	input := ""
	if ctx := s.ticket.Context(); ctx != nil {
		input = ctx.Input()
	}

	return func(yield func(*ime.Candidate) bool) {
		for c := range t {
			text, keep, err := s.Transform(c.Text, input, c.Type)
			if err != nil {
				s.logger.Warn("lua transform failed", "script", s.name, "error", err)
				text, keep = c.Text, true
			}
			if !keep {
				continue
			}
			if text != c.Text {
				c = c.Clone()
				c.Text = text
			}
			if !yield(c) {
				return
			}
		}
	}
}

// Transform calls the script's transform function. keep is false when the
// script returned nil.
func (s *Stage) Transform(text, input, typ string) (result string, keep bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", false, ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	err = s.L.CallByParam(lua.P{
		Fn:      s.L.GetGlobal(TransformFunc),
		NRet:    1,
		Protect: true,
	}, lua.LString(text), lua.LString(input), lua.LString(typ))
	if err != nil {
		return "", false, err
	}

	ret := s.L.Get(-1)
	s.L.Pop(1)

	switch v := ret.(type) {
	case lua.LString:
		return string(v), true, nil
	default:
		if ret == lua.LNil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("transform returned %s, want string or nil", ret.Type())
	}
}

// Close releases the Lua state.
func (s *Stage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
