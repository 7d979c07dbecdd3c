package domain

import "fmt"

// InstanceState is the lifecycle of one container instance.
type InstanceState string

const (
	StateBuilt      InstanceState = "built"
	StateStarting   InstanceState = "starting"
	StateLaunched   InstanceState = "launched"
	StateServing    InstanceState = "serving"
	StateTerminated InstanceState = "terminated"
)

var transitions = map[InstanceState][]InstanceState{
	StateBuilt:      {StateStarting},
	StateStarting:   {StateLaunched, StateTerminated},
	StateLaunched:   {StateServing, StateTerminated},
	StateServing:    {StateTerminated},
	StateTerminated: nil,
}

// CanTransition reports whether the state machine allows moving from s to next.
func (s InstanceState) CanTransition(next InstanceState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next, or ErrInvalidTransition.
func (s InstanceState) Transition(next InstanceState) (InstanceState, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

// Terminal reports whether no further transition exists.
func (s InstanceState) Terminal() bool {
	return s == StateTerminated
}

// Ordinal is used as the gauge value for the state metric.
func (s InstanceState) Ordinal() int {
	switch s {
	case StateBuilt:
		return 0
	case StateStarting:
		return 1
	case StateLaunched:
		return 2
	case StateServing:
		return 3
	case StateTerminated:
		return 4
	}
	return -1
}

// StateFromRuntime maps a Docker container state onto the lifecycle.
// A running container is only "launched" until a readiness probe says otherwise.
func StateFromRuntime(state string) InstanceState {
	switch state {
	case "created":
		return StateStarting
	case "running", "restarting", "paused":
		return StateLaunched
	case "exited", "dead", "removing":
		return StateTerminated
	}
	return StateBuilt
}
