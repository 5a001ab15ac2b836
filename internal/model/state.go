// Package model defines the shared data types the broker's components
// operate on: task state, the task record itself, and the media/session
// records that ride alongside it.
package model

// State is a task's position in the download lifecycle.
type State string

const (
	Queued      State = "QUEUED"
	Starting    State = "STARTING"
	Downloading State = "DOWNLOADING"
	Paused      State = "PAUSED"
	Waiting     State = "WAITING"
	Completed   State = "COMPLETED"
	Failed      State = "FAILED"
	Cancelled   State = "CANCELLED"
	Extracting  State = "EXTRACTING"
	Skipped     State = "SKIPPED"
)

// CanPause reports whether a pause control operation is valid from this state.
func (s State) CanPause() bool {
	switch s {
	case Queued, Starting, Downloading, Waiting:
		return true
	default:
		return false
	}
}

// CanResume reports whether a resume control operation is valid from this state.
func (s State) CanResume() bool {
	switch s {
	case Paused, Waiting, Skipped:
		return true
	default:
		return false
	}
}

// CanCancel reports whether a cancel control operation is valid from this state.
func (s State) CanCancel() bool {
	switch s {
	case Queued, Starting, Downloading, Waiting, Paused, Extracting:
		return true
	default:
		return false
	}
}

// CanRetry reports whether a retry control operation is valid from this state.
func (s State) CanRetry() bool {
	switch s {
	case Waiting, Completed, Failed, Cancelled, Skipped:
		return true
	default:
		return false
	}
}

// CanDelete reports whether a delete control operation is valid from this state.
func (s State) CanDelete() bool {
	switch s {
	case Queued, Paused, Completed, Failed, Cancelled, Skipped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state is a resting state the orchestrator
// never transitions out of on its own.
func (s State) IsTerminal() bool {
	switch s {
	case Completed, Cancelled, Failed:
		return true
	default:
		return false
	}
}

// AvailableActions lists the control operations valid from this state, in a
// fixed order, mirroring the capability-query methods above.
func (s State) AvailableActions() []string {
	var actions []string
	if s.CanPause() {
		actions = append(actions, "pause")
	}
	if s.CanResume() {
		actions = append(actions, "resume")
	}
	if s.CanCancel() {
		actions = append(actions, "cancel")
	}
	if s.CanRetry() {
		actions = append(actions, "retry")
	}
	if s.CanDelete() {
		actions = append(actions, "delete")
	}
	return actions
}

// transitions is the static adjacency table for claim/resolve/progress/etc.
// actions. It does not enumerate every control-operation edge (those are
// guarded by the Can* predicates above instead, since several actions are
// valid from more than one state and always land on the same target); it
// captures the worker-driven state machine edges from spec section 4.7.
var transitions = map[State]map[State]bool{
	Queued:      {Starting: true, Paused: true, Cancelled: true},
	Starting:    {Downloading: true, Failed: true, Waiting: true, Paused: true, Cancelled: true},
	Downloading: {Downloading: true, Completed: true, Waiting: true, Failed: true, Paused: true, Cancelled: true},
	Paused:      {Queued: true, Cancelled: true},
	Waiting:     {Starting: true, Queued: true, Paused: true, Cancelled: true},
	Completed:   {Queued: true},
	Failed:      {Queued: true},
	Cancelled:   {Queued: true},
	Skipped:     {Queued: true},
	Extracting:  {Cancelled: true},
}

// CanTransitionTo reports whether moving from s to target is a valid edge in
// the state machine.
func (s State) CanTransitionTo(target State) bool {
	return transitions[s][target]
}
