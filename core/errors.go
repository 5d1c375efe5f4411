package pipeline

import "fmt"

// ErrorKind classifies a stage failure for recovery and escalation.
type ErrorKind string

const (
	ErrorKindTranscription ErrorKind = "transcription"
	ErrorKindGeneration    ErrorKind = "generation"
	ErrorKindSynthesis     ErrorKind = "synthesis"
	ErrorKindTransport     ErrorKind = "transport"
	ErrorKindConfiguration ErrorKind = "configuration"
)

// StageFailure wraps a stage error with its kind so the controller can route
// recovery and count consecutive same-kind failures. Cancellation never
// produces a StageFailure.
type StageFailure struct {
	Kind ErrorKind
	Err  error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Kind, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }

func newStageFailure(kind ErrorKind, err error) *StageFailure {
	return &StageFailure{Kind: kind, Err: err}
}

// failureTracker counts consecutive failures of the same kind. A failure of
// a different kind restarts the count; any completed turn resets it.
type failureTracker struct {
	threshold int

	kind  ErrorKind
	count int
}

// record registers a failure and reports whether the consecutive-failure
// threshold was crossed.
func (t *failureTracker) record(kind ErrorKind) bool {
	if kind != t.kind {
		t.kind = kind
		t.count = 0
	}
	t.count++
	return t.count >= t.threshold
}

func (t *failureTracker) reset() {
	t.kind = ""
	t.count = 0
}
