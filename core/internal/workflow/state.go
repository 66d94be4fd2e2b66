package workflow

import (
	"errors"
	"fmt"
	"slices"
)

// State is a step of one report-to-delivery workflow.
type State string

const (
	StateIdle                      State = "idle"
	StateAwaitingArtifact          State = "awaiting_artifact"
	StateAwaitingSessionTransition State = "awaiting_session_transition"
	StateAwaitingStability         State = "awaiting_stability"
	StateDelivering                State = "delivering"
	StateDelivered                 State = "delivered"
	StateFailedNoArtifact          State = "failed_no_artifact"
	StateFailedDeliveryError       State = "failed_delivery_error"
	StateIgnored                   State = "ignored"
)

var ErrInvalidTransition = errors.New("invalid workflow transition")

// Delivering is reachable straight from Idle when the demo directory is
// missing, and from AwaitingArtifact when the wait gives up.
var transitions = map[State][]State{
	StateIdle:                      {StateAwaitingArtifact, StateDelivering, StateIgnored},
	StateAwaitingArtifact:          {StateAwaitingSessionTransition, StateDelivering},
	StateAwaitingSessionTransition: {StateAwaitingStability},
	StateAwaitingStability:         {StateDelivering},
	StateDelivering:                {StateDelivered, StateFailedNoArtifact, StateFailedDeliveryError},
}

// IsTerminal reports whether s ends a workflow.
func (s State) IsTerminal() bool {
	switch s {
	case StateDelivered, StateFailedNoArtifact, StateFailedDeliveryError, StateIgnored:
		return true
	}
	return false
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

type machine struct {
	runID   string
	state   State
	journal *Journal
}

func newMachine(runID string, journal *Journal) *machine {
	return &machine{runID: runID, state: StateIdle, journal: journal}
}

func (m *machine) advance(next State, detail string) error {
	if m.state.IsTerminal() || !CanTransition(m.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
	}
	prev := m.state
	m.state = next
	return m.journal.Record(Entry{RunID: m.runID, From: prev, To: next, Detail: detail})
}
