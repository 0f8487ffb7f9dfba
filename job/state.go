package job

import "fmt"

// State is the persisted lifecycle state of a Job.
type State string

const (
	StateInitialize     State = "initialize"
	StateWaitingToStart State = "waiting_to_start"
	StatePreExecute     State = "pre_execute"
	StateExecute        State = "execute"
	StateRunning        State = "running"
	StatePostExecute    State = "post_execute"
	StateFinished       State = "finished"
	StateAborting       State = "aborting"
	StateCanceling      State = "canceling"
)

// anyState marks transitions accepted from every state.
const anyState State = "*"

// Terminal reports whether no further transitions are expected.
func (s State) Terminal() bool {
	switch s {
	case StateFinished, StateAborting, StateCanceling:
		return true
	}
	return false
}

// Event is a requested state transition.
type Event string

const (
	EventInitializing Event = "initializing"
	EventStart        Event = "start"
	EventPreExecute   Event = "pre_execute"
	EventExecute      Event = "execute"
	EventPollRunner   Event = "poll_runner"
	EventPostExecute  Event = "post_execute"
	EventFinish       Event = "finish"
	EventAbort        Event = "abort_job"
	EventCancel       Event = "cancel"
	EventError        Event = "error"
)

// transitions maps each event to its allowed source states and the resulting
// target. The error event is a self-loop: accepted everywhere, state
// unchanged.
var transitions = map[Event]map[State]State{
	EventInitializing: {StateInitialize: StateWaitingToStart},
	EventStart:        {StateWaitingToStart: StatePreExecute},
	EventPreExecute:   {StatePreExecute: StateExecute},
	EventExecute:      {StateExecute: StateRunning},
	EventPollRunner:   {StateRunning: StateRunning},
	EventPostExecute:  {StateRunning: StatePostExecute},
	EventFinish:       {anyState: StateFinished},
	EventAbort:        {anyState: StateAborting},
	EventCancel:       {anyState: StateCanceling},
	EventError:        {anyState: anyState},
}

// StateTransitionError reports an event attempted from an incompatible
// state. It is an ordering defect guard and is never silently ignored.
type StateTransitionError struct {
	Event Event
	State State
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s is not permitted at state %s", e.Event, e.State)
}

// Next resolves the target state for an event applied at current, validating
// against the transition table.
func Next(current State, event Event) (State, error) {
	table, ok := transitions[event]
	if !ok {
		return "", &StateTransitionError{Event: event, State: current}
	}
	if target, ok := table[current]; ok {
		return target, nil
	}
	if target, ok := table[anyState]; ok {
		if target == anyState {
			return current, nil
		}
		return target, nil
	}
	return "", &StateTransitionError{Event: event, State: current}
}
