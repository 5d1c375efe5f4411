package events

import "time"

// KindUtteranceFinalized identifies an utterance appended to the
// conversation history.
const KindUtteranceFinalized Kind = "conversation.utterance_finalized"

// UtteranceFinalized marks an utterance being committed to the conversation
// history. Only fully completed turns produce assistant-role entries.
type UtteranceFinalized struct {
	Base
	Role      string
	Content   string
	StartedAt time.Time
	EndedAt   time.Time
}

func NewUtteranceFinalized(role, content string, startedAt, endedAt time.Time) UtteranceFinalized {
	return UtteranceFinalized{
		Base:      NewBase(KindUtteranceFinalized),
		Role:      role,
		Content:   content,
		StartedAt: startedAt,
		EndedAt:   endedAt,
	}
}
