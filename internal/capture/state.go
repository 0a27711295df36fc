package capture

// State of the capture widget.
type State string

const (
	StateIdle        State = "idle"
	StateRecording   State = "recording"
	StateReviewing   State = "reviewing"
	StateUploading   State = "uploading"
	StateDone        State = "done"
	StateUploadError State = "upload_error"
)

// Action is a user action on the widget.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRedo    Action = "redo"
	ActionConfirm Action = "confirm"
	ActionRetry   Action = "retry"
	ActionAbort   Action = "abort"
)

var (
	States  = []State{StateIdle, StateRecording, StateReviewing, StateUploading, StateDone, StateUploadError}
	Actions = []Action{ActionStart, ActionStop, ActionRedo, ActionConfirm, ActionRetry, ActionAbort}
)

// Upload completion and failure are not user actions; the machine moves
// from uploading to done or upload_error on its own.
var transitions = map[State]map[Action]State{
	StateIdle: {
		ActionStart: StateRecording,
	},
	StateRecording: {
		ActionStop:  StateReviewing,
		ActionAbort: StateIdle,
	},
	StateReviewing: {
		ActionRedo:    StateIdle,
		ActionConfirm: StateUploading,
	},
	StateUploading: {
		ActionAbort: StateReviewing,
	},
	StateUploadError: {
		ActionRetry: StateUploading,
		ActionAbort: StateReviewing,
	},
	StateDone: {},
}

// Next returns the state after a in s. ok is false for pairs without a
// transition, in which case the state is unchanged.
func Next(s State, a Action) (State, bool) {
	next, ok := transitions[s][a]
	if !ok {
		return s, false
	}
	return next, true
}
