package pipeline

// TurnState is the session's turn-taking state. Exactly one controller owns
// it per session; all transitions happen on the controller's event loop.
type TurnState int

const (
	// StateIdle is the state before the session is live and during the
	// optional greeting. It is reached again only on teardown.
	StateIdle TurnState = iota
	// StateListening waits for the user to speak.
	StateListening
	// StateTranscribing converts a closed speech segment to text.
	StateTranscribing
	// StateGenerating streams a model response for the finalized transcript.
	StateGenerating
	// StateSpeaking plays synthesized response audio.
	StateSpeaking
)

func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateTranscribing:
		return "transcribing"
	case StateGenerating:
		return "generating"
	case StateSpeaking:
		return "speaking"
	}
	return "unknown"
}

// validTransitions is the explicit transition table. Listening reaches
// Generating directly when a typed prompt bypasses transcription; any state
// reaches Listening through the interrupt and recovery paths, and Idle only
// on teardown.
var validTransitions = map[TurnState][]TurnState{
	StateIdle:         {StateListening},
	StateListening:    {StateTranscribing, StateGenerating, StateIdle},
	StateTranscribing: {StateGenerating, StateListening, StateIdle},
	StateGenerating:   {StateSpeaking, StateListening, StateIdle},
	StateSpeaking:     {StateListening, StateIdle},
}

func (s TurnState) canTransitionTo(next TurnState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
