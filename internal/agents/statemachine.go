package agents

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStates is returned when validating a machine with no states.
	ErrNoStates = errors.New("state machine has no states")
	// ErrUnknownState is returned for a state that was never declared.
	ErrUnknownState = errors.New("unknown state")
)

// Guard decides whether a transition fires.
type Guard func(a *Agent) (bool, error)

// Action runs when a transition fires, before the state changes.
type Action func(a *Agent) error

// Always is a guard that always fires.
func Always(*Agent) (bool, error) { return true, nil }

// Transition moves a machine from one state to another.
type Transition struct {
	From, To string
	Guard    Guard
	Action   Action
}

// StateMachine is a Behavior holding a current state and guarded transitions.
// Each step at most one transition fires: the first, in insertion order,
// leaving the current state whose guard holds.
type StateMachine struct {
	states      []string
	known       map[string]bool
	current     string
	transitions []Transition
}

// NewStateMachine declares states; the first one is the initial state.
func NewStateMachine(states ...string) *StateMachine {
	m := &StateMachine{known: make(map[string]bool)}
	m.AddStates(states...)
	return m
}

// AddStates declares more states.
func (m *StateMachine) AddStates(states ...string) {
	for _, s := range states {
		if m.known[s] {
			continue
		}
		m.known[s] = true
		m.states = append(m.states, s)
		if m.current == "" {
			m.current = s
		}
	}
}

// States returns the declared states in declaration order.
func (m *StateMachine) States() []string {
	out := make([]string, len(m.states))
	copy(out, m.states)
	return out
}

// AddTransition adds a guarded transition. action may be nil.
func (m *StateMachine) AddTransition(from, to string, guard Guard, action Action) error {
	for _, s := range []string{from, to} {
		if !m.known[s] {
			return fmt.Errorf("transition %s -> %s: %w: %s", from, to, ErrUnknownState, s)
		}
	}
	if guard == nil {
		guard = Always
	}
	m.transitions = append(m.transitions, Transition{From: from, To: to, Guard: guard, Action: action})
	return nil
}

// Transitions returns the transitions leaving state, in insertion order.
func (m *StateMachine) Transitions(state string) []Transition {
	var out []Transition
	for _, t := range m.transitions {
		if t.From == state {
			out = append(out, t)
		}
	}
	return out
}

// Current returns the current state.
func (m *StateMachine) Current() string { return m.current }

// SetState forces the current state.
func (m *StateMachine) SetState(s string) error {
	if !m.known[s] {
		return fmt.Errorf("%w: %s", ErrUnknownState, s)
	}
	m.current = s
	return nil
}

// Validate checks the machine is usable.
func (m *StateMachine) Validate() error {
	if len(m.states) == 0 {
		return ErrNoStates
	}
	return nil
}

// Execute evaluates the transitions out of the current state. A failing
// guard or action aborts the step and leaves the state unchanged.
func (m *StateMachine) Execute(a *Agent) error {
	for _, t := range m.transitions {
		if t.From != m.current {
			continue
		}
		ok, err := t.Guard(a)
		if err != nil {
			return fmt.Errorf("guard %s -> %s: %w", t.From, t.To, err)
		}
		if !ok {
			continue
		}
		if t.Action != nil {
			if err := t.Action(a); err != nil {
				return fmt.Errorf("action %s -> %s: %w", t.From, t.To, err)
			}
		}
		m.current = t.To
		a.record("transition", "agent %d (%s) %s -> %s", a.ID, a.Name, t.From, t.To)
		return nil
	}
	return nil
}
