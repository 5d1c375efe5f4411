package llms

import "time"

// Role describes who an utterance is from.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Utterance is one finalized entry in a conversation: the transcript of what
// the user said, or the text of a fully completed assistant response.
// Utterances are immutable once appended to the conversation history.
type Utterance struct {
	ID      string
	Role    Role
	Content string

	// StartedAt and EndedAt bound the utterance in time: capture start to
	// final transcript for the user, generation start to playback end for the
	// assistant.
	StartedAt time.Time
	EndedAt   time.Time
}

// Response is a single response from a model.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolCall is one tool invocation surfaced by the model, together with the
// execution result once the tool ran.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	Response  string
}
