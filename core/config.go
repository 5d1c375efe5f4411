package pipeline

import "fmt"

// TruncationPolicy picks how history beyond MaxHistoryTurns is handled.
type TruncationPolicy string

const (
	// TruncateKeepRecent drops the oldest utterances.
	TruncateKeepRecent TruncationPolicy = "keep-recent"
	// TruncateSummarize folds dropped utterances into a synthetic summary
	// utterance produced by the response generator.
	TruncateSummarize TruncationPolicy = "summarize"
)

const (
	defaultMinSpeechFrames  = 3
	defaultMinSilenceFrames = 25
	defaultFailureThreshold = 3
)

// SessionConfig carries per-session tuning. The zero value is valid and
// yields the documented defaults.
type SessionConfig struct {
	// Greeting is optional text spoken when the session starts, before the
	// session begins listening. The greeting is interruptible.
	Greeting string
	// SystemPrompt is passed to the response generator as instructions.
	SystemPrompt string

	// MinSpeechFrames is the minimum segment length, in frames, for a speech
	// segment to reach the transcriber. Shorter segments are discarded as
	// noise.
	MinSpeechFrames int
	// MinSilenceFrames is the number of consecutive silence frames that end
	// a speech segment.
	MinSilenceFrames int

	// MaxHistoryTurns bounds the conversation history in utterances.
	// Zero means unbounded.
	MaxHistoryTurns int
	// HistoryTruncationPolicy applies once MaxHistoryTurns is exceeded.
	HistoryTruncationPolicy TruncationPolicy

	// FailureThreshold is the number of consecutive same-kind stage failures
	// that escalate to a session-fatal error.
	FailureThreshold int
}

func (c *SessionConfig) applyDefaults() {
	if c.MinSpeechFrames == 0 {
		c.MinSpeechFrames = defaultMinSpeechFrames
	}
	if c.MinSilenceFrames == 0 {
		c.MinSilenceFrames = defaultMinSilenceFrames
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.HistoryTruncationPolicy == "" {
		c.HistoryTruncationPolicy = TruncateKeepRecent
	}
}

// validate fails fast on a config no session could run with.
func (c SessionConfig) validate() error {
	if c.MinSpeechFrames < 0 {
		return newStageFailure(ErrorKindConfiguration, fmt.Errorf("min speech frames must not be negative, got %d", c.MinSpeechFrames))
	}
	if c.MinSilenceFrames < 0 {
		return newStageFailure(ErrorKindConfiguration, fmt.Errorf("min silence frames must not be negative, got %d", c.MinSilenceFrames))
	}
	if c.MaxHistoryTurns < 0 {
		return newStageFailure(ErrorKindConfiguration, fmt.Errorf("max history turns must not be negative, got %d", c.MaxHistoryTurns))
	}
	if c.FailureThreshold < 0 {
		return newStageFailure(ErrorKindConfiguration, fmt.Errorf("failure threshold must not be negative, got %d", c.FailureThreshold))
	}
	switch c.HistoryTruncationPolicy {
	case "", TruncateKeepRecent, TruncateSummarize:
	default:
		return newStageFailure(ErrorKindConfiguration, fmt.Errorf("unknown history truncation policy %q", c.HistoryTruncationPolicy))
	}
	return nil
}
