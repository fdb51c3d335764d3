package statemachine

import "time"

// Model is the persisted state of one content item.
//
// TransitionNum counts transition attempts, including rejected ones, so it
// bounds retries. A transition is in flight while TransitionStart is after
// TransitionEnd.
type Model struct {
	Kind            string
	CurrentState    string
	TransitionNum   int
	TransitionStart time.Time
	TransitionEnd   time.Time
	CompletedAt     time.Time
}

// NewModel returns a model for def in the undefined state.
func NewModel(def Definition) Model {
	return Model{Kind: def.Kind, CurrentState: StateUndefined}
}

// InTransition reports whether a started transition has not finished yet.
func (m Model) InTransition() bool {
	return m.TransitionStart.After(m.TransitionEnd)
}

// StartTransition records an attempt towards to and marks the model in flight.
// The attempt counter is advanced before validation.
func (m *Model) StartTransition(def Definition, to string, now time.Time) error {
	m.TransitionNum++
	if err := def.ValidateTransition(m.CurrentState, to); err != nil {
		return err
	}
	m.TransitionStart = now
	return nil
}

// TransitionTo moves the model to to. Finishing a transition begun with
// StartTransition does not count a second attempt.
func (m *Model) TransitionTo(def Definition, to string, now time.Time) error {
	inFlight := m.InTransition()
	if !inFlight {
		m.TransitionNum++
	}
	if err := def.ValidateTransition(m.CurrentState, to); err != nil {
		return err
	}
	if !inFlight {
		m.TransitionStart = now
	}
	m.CurrentState = to
	m.TransitionEnd = now
	if IsTerminal(to) {
		m.CompletedAt = now
	} else {
		m.CompletedAt = time.Time{}
	}
	return nil
}
