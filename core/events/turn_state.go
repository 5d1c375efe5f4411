package events

// KindTurnStateChanged identifies a turn state transition.
const KindTurnStateChanged Kind = "turn_state.changed"

// TurnStateChanged marks a transition of the session's turn state machine.
// Old and New are the string forms of the states.
type TurnStateChanged struct {
	Base
	Old string
	New string
}

func NewTurnStateChanged(old, new string) TurnStateChanged {
	return TurnStateChanged{Base: NewBase(KindTurnStateChanged), Old: old, New: new}
}

// KindInterruptionDetected identifies a user barge-in.
const KindInterruptionDetected Kind = "turn_state.interruption_detected"

// InterruptionDetected marks the user starting to speak while the assistant
// was generating or playing a response. At is the string form of the state
// that was interrupted.
type InterruptionDetected struct {
	Base
	At string
}

func NewInterruptionDetected(at string) InterruptionDetected {
	return InterruptionDetected{Base: NewBase(KindInterruptionDetected), At: at}
}

// KindTurnCancelled identifies turn cancellation.
const KindTurnCancelled Kind = "turn_state.cancelled"

// TurnCancelled marks cancellation of the current turn.
type TurnCancelled struct{ Base }

// NewTurnCancelled creates a turn cancelled event.
func NewTurnCancelled() TurnCancelled {
	return TurnCancelled{Base: NewBase(KindTurnCancelled)}
}
