package filter

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot/internal/config"
	"copilot/internal/ime"
)

// suffix returns a stage appending s to every candidate's text.
func suffix(s string) Stage {
	return StageFunc(func(t ime.Translation) ime.Translation {
		return func(yield func(*ime.Candidate) bool) {
			for c := range t {
				c = c.Clone()
				c.Text += s
				if !yield(c) {
					return
				}
			}
		}
	})
}

// dropShort returns a stage removing candidates shorter than n bytes.
func dropShort(n int) Stage {
	return StageFunc(func(t ime.Translation) ime.Translation {
		return func(yield func(*ime.Candidate) bool) {
			for c := range t {
				if len(c.Text) < n {
					continue
				}
				if !yield(c) {
					return
				}
			}
		}
	})
}

func registerForTest(t *testing.T, name string, creator Creator) {
	t.Helper()
	Register(name, creator)
	t.Cleanup(func() { unregister(name) })
}

func activeTicket(t *testing.T) Ticket {
	t.Helper()
	h := ime.NewHost()
	require.NoError(t, h.StartSession(ime.SessionOptions{AppID: "test"}))
	return Ticket{Engine: h}
}

func texts(tr ime.Translation) []string {
	var out []string
	for _, c := range tr.Collect(0) {
		out = append(out, c.Text)
	}
	return out
}

func sample() ime.Translation {
	return ime.NewTranslation(
		&ime.Candidate{Text: "a"},
		&ime.Candidate{Text: "bb"},
		&ime.Candidate{Text: "ccc"},
	)
}

func TestChainIdentityWithoutCandidateList(t *testing.T) {
	c, err := NewChainOf(activeTicket(t), suffix("!"))
	require.NoError(t, err)

	in := sample()
	out := c.Apply(in, nil)
	assert.Equal(t, []string{"a", "bb", "ccc"}, texts(out))
}

func TestChainIdentityWithoutContext(t *testing.T) {
	tickets := map[string]Ticket{
		"no engine":  {},
		"no session": {Engine: ime.NewHost()},
	}
	for name, ticket := range tickets {
		c, err := NewChainOf(ticket, suffix("!"))
		require.NoError(t, err)

		out := c.Apply(sample(), ime.NewCandidateList())
		assert.Equal(t, []string{"a", "bb", "ccc"}, texts(out), name)
	}
}

func TestChainNilTranslationPassesThrough(t *testing.T) {
	c, err := NewChainOf(Ticket{}, suffix("!"))
	require.NoError(t, err)
	assert.Nil(t, c.Apply(nil, nil))
}

func TestChainOrderEqualsComposition(t *testing.T) {
	s1, s2 := suffix("1"), dropShort(3)
	c, err := NewChainOf(activeTicket(t), s1, s2)
	require.NoError(t, err)

	got := texts(c.Apply(sample(), ime.NewCandidateList()))
	want := texts(s2.Apply(s1.Apply(sample())))

	assert.Equal(t, want, got)
	assert.Equal(t, []string{"bb1", "ccc1"}, got)

	// Reversed order gives a different result.
	r, err := NewChainOf(activeTicket(t), s2, s1)
	require.NoError(t, err)
	assert.Equal(t, []string{"ccc1"}, texts(r.Apply(sample(), ime.NewCandidateList())))
}

func TestChainDoesNotMutateUpstream(t *testing.T) {
	cands := []*ime.Candidate{{Text: "a"}, {Text: "b"}}
	c, err := NewChainOf(activeTicket(t), suffix("!"))
	require.NoError(t, err)

	texts(c.Apply(ime.NewTranslation(cands...), ime.NewCandidateList()))
	assert.Equal(t, "a", cands[0].Text)
	assert.Equal(t, "b", cands[1].Text)
}

func TestNewChainErrors(t *testing.T) {
	_, err := NewChain(Ticket{})
	assert.ErrorIs(t, err, ErrEmptyChain)

	_, err = NewChainOf(Ticket{})
	assert.ErrorIs(t, err, ErrEmptyChain)

	_, err = NewChain(Ticket{}, "no_such_stage")
	assert.ErrorIs(t, err, ErrUnknownStage)

	boom := errors.New("boom")
	registerForTest(t, "test_failing", func(Ticket) (Stage, error) { return nil, boom })
	_, err = NewChain(Ticket{}, "test_failing")
	assert.ErrorIs(t, err, boom)
}

func TestNewChainBindsTicket(t *testing.T) {
	var got []Ticket
	registerForTest(t, "test_capture", func(tk Ticket) (Stage, error) {
		got = append(got, tk)
		return suffix(""), nil
	})

	base := activeTicket(t)
	base.Namespace = "default"
	c, err := NewChain(base, "test_capture", "test_capture@other")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "test_capture", got[0].Name)
	assert.Equal(t, "default", got[0].Namespace)
	assert.Equal(t, "other", got[1].Namespace)
	assert.Same(t, base.Engine, got[1].Engine)
	assert.NotNil(t, got[0].Logger)
	assert.Equal(t, []string{"test_capture", "test_capture@other"}, c.Names())
	assert.Equal(t, 2, c.Len())
}

func TestRegistry(t *testing.T) {
	registerForTest(t, "test_registry", func(Ticket) (Stage, error) { return suffix(""), nil })

	_, ok := Lookup("test_registry")
	assert.True(t, ok)
	assert.Contains(t, Names(), "test_registry")

	assert.Panics(t, func() {
		Register("test_registry", func(Ticket) (Stage, error) { return nil, nil })
	})
	assert.Panics(t, func() { Register("test_nil", nil) })
}

func TestAssemblies(t *testing.T) {
	registerForTest(t, StageRawInput, func(Ticket) (Stage, error) { return suffix("r"), nil })
	registerForTest(t, StageAutoSpacer, func(Ticket) (Stage, error) { return suffix("s"), nil })

	ticket := activeTicket(t)
	list := ime.NewCandidateList()
	one := func() ime.Translation { return ime.NewTranslation(&ime.Candidate{Text: "x"}) }

	auto, err := NewAutoSpacerFilter(ticket)
	require.NoError(t, err)
	assert.Equal(t, []string{"xs"}, texts(auto.Apply(one(), list)))

	raw, err := NewRawInputFilter(ticket)
	require.NoError(t, err)
	assert.Equal(t, []string{"xr"}, texts(raw.Apply(one(), list)))

	copilot, err := NewCopilotFilter(ticket)
	require.NoError(t, err)
	assert.Equal(t, []string{"xrs"}, texts(copilot.Apply(one(), list)))
	assert.Equal(t, []string{StageRawInput, StageAutoSpacer}, copilot.Names())
}

func TestNewChainFromConfig(t *testing.T) {
	var opts map[string]any
	registerForTest(t, "test_upper", func(tk Ticket) (Stage, error) {
		opts = tk.Options
		return StageFunc(func(tr ime.Translation) ime.Translation {
			return func(yield func(*ime.Candidate) bool) {
				for c := range tr {
					c = c.Clone()
					c.Text = strings.ToUpper(c.Text)
					if !yield(c) {
						return
					}
				}
			}
		}), nil
	})

	cfg := config.FiltersConfig{
		Stages:  []string{"test_upper"},
		Options: map[string]any{"k": "v"},
	}
	c, err := NewChainFromConfig(activeTicket(t), cfg)
	require.NoError(t, err)
	assert.Equal(t, "v", opts["k"])
	assert.Equal(t, []string{"A", "BB", "CCC"}, texts(c.Apply(sample(), ime.NewCandidateList())))

	_, err = NewChainFromConfig(Ticket{}, config.FiltersConfig{})
	assert.ErrorIs(t, err, ErrEmptyChain)
}

func TestChainImplementsFilter(t *testing.T) {
	var _ ime.Filter = (*Chain)(nil)
}
