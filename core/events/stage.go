package events

// KindStageError identifies a recoverable failure in a pipeline stage.
const KindStageError Kind = "stage.error"

// StageError marks a failure of one pipeline stage during an active turn.
// The session recovers locally by returning to listening; repeated failures
// of the same stage escalate separately.
type StageError struct {
	Base
	Stage string
	Err   error
}

func NewStageError(stage string, err error) StageError {
	return StageError{Base: NewBase(KindStageError), Stage: stage, Err: err}
}

// KindSessionFatal identifies an escalated, session-ending failure.
const KindSessionFatal Kind = "stage.session_fatal"

// SessionFatal marks repeated same-stage failures crossing the configured
// threshold. It is emitted exactly once per session.
type SessionFatal struct {
	Base
	Stage string
	Err   error
}

func NewSessionFatal(stage string, err error) SessionFatal {
	return SessionFatal{Base: NewBase(KindSessionFatal), Stage: stage, Err: err}
}
