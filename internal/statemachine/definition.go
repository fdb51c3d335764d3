package statemachine

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"contentflow/internal/services"
)

// Base state names shared by every workflow.
const (
	StateUndefined = "undefined"
	StateReady     = "ready"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// BaseKind is the kind recorded for items using the plain base definition.
const BaseKind = "base"

var (
	// ErrUnknownState reports a state name outside the definition's state set.
	ErrUnknownState = errors.New("unknown state")
	// ErrTransitionNotAllowed reports a transition missing from the table.
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	// ErrUnknownKind reports a persisted kind with no registered definition.
	ErrUnknownKind = errors.New("unknown state machine kind")
)

// Table maps a source state to the states it may move to.
type Table map[string][]string

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for from, targets := range t {
		out[from] = append([]string(nil), targets...)
	}
	return out
}

// Compose overlays additions onto base. An addition replaces the base entry
// for the same source state rather than merging target lists.
func Compose(base, additions Table) Table {
	out := base.Clone()
	for from, targets := range additions {
		out[from] = append([]string(nil), targets...)
	}
	return out
}

// Definition is a workflow's declared state set and transition table.
type Definition struct {
	Kind        string
	States      []string
	Transitions Table
}

// Base returns the generic definition every workflow extends.
func Base() Definition {
	return Definition{
		Kind:   BaseKind,
		States: []string{StateUndefined, StateReady, StateCompleted, StateFailed},
		Transitions: Table{
			StateUndefined: {StateReady},
			StateReady:     {StateCompleted, StateFailed},
			StateFailed:    {StateReady},
		},
	}
}

// Extend builds a workflow definition from the base one. Workflow states are
// placed after ready and before the terminal states, keeping declaration order.
func Extend(kind string, states []string, additions Table) Definition {
	base := Base()
	ordered := make([]string, 0, len(base.States)+len(states))
	ordered = append(ordered, StateUndefined, StateReady)
	for _, state := range states {
		if !slices.Contains(ordered, state) && state != StateCompleted && state != StateFailed {
			ordered = append(ordered, state)
		}
	}
	ordered = append(ordered, StateCompleted, StateFailed)
	return Definition{
		Kind:        kind,
		States:      ordered,
		Transitions: Compose(base.Transitions, additions),
	}
}

// HasState reports whether state belongs to the definition.
func (d Definition) HasState(state string) bool {
	return slices.Contains(d.States, state)
}

// IsTerminal reports whether state ends the workflow.
func IsTerminal(state string) bool {
	return state == StateCompleted || state == StateFailed
}

// IsTransitionAllowed reports whether the table declares from -> to.
func (d Definition) IsTransitionAllowed(from, to string) bool {
	return slices.Contains(d.Transitions[from], to)
}

// ProcessingStates lists the states the processor scans, in declaration order.
func (d Definition) ProcessingStates() []string {
	out := make([]string, 0, len(d.States))
	for _, state := range d.States {
		if state == StateUndefined || IsTerminal(state) {
			continue
		}
		out = append(out, state)
	}
	return out
}

// ValidateTransition returns a validation error unless from -> to is declared
// and both ends belong to the state set.
func (d Definition) ValidateTransition(from, to string) error {
	if !d.HasState(from) {
		return validationError(d.Kind, fmt.Sprintf("current state %q", from), ErrUnknownState)
	}
	if !d.HasState(to) {
		return validationError(d.Kind, fmt.Sprintf("target state %q", to), ErrUnknownState)
	}
	if !d.IsTransitionAllowed(from, to) {
		return validationError(d.Kind, fmt.Sprintf("%s -> %s", from, to), ErrTransitionNotAllowed)
	}
	return nil
}

// Validate checks the table is closed over the state set and that every
// processing state can be failed directly.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Kind) == "" {
		return validationError(d.Kind, "kind is required", nil)
	}
	for _, state := range []string{StateUndefined, StateReady, StateCompleted, StateFailed} {
		if !d.HasState(state) {
			return validationError(d.Kind, fmt.Sprintf("missing base state %q", state), ErrUnknownState)
		}
	}
	sources := make([]string, 0, len(d.Transitions))
	for from := range d.Transitions {
		sources = append(sources, from)
	}
	sort.Strings(sources)
	for _, from := range sources {
		if !d.HasState(from) {
			return validationError(d.Kind, fmt.Sprintf("transition source %q", from), ErrUnknownState)
		}
		for _, to := range d.Transitions[from] {
			if !d.HasState(to) {
				return validationError(d.Kind, fmt.Sprintf("transition target %q", to), ErrUnknownState)
			}
		}
	}
	for _, state := range d.ProcessingStates() {
		if !d.IsTransitionAllowed(state, StateFailed) {
			return validationError(d.Kind, fmt.Sprintf("state %q cannot move to failed", state), ErrTransitionNotAllowed)
		}
	}
	return nil
}

func validationError(kind, message string, cause error) error {
	return services.Wrap(services.ErrValidation, "statemachine", kind, message, cause)
}
