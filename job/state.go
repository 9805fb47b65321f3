package job

// transitions lists the legal moves of the job state machine.
var transitions = map[State][]State{
	StatePending:  {StateRunning},
	StateRunning:  {StateCompleted, StateRetrying, StateFailed},
	StateRetrying: {StatePending},
}

// CanTransition reports whether a record may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
