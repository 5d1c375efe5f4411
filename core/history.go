package pipeline

import (
	"sync"

	"github.com/jinzhu/copier"
	"github.com/voxloop/voxloop/core/llms"
)

// conversationHistory is the ordered record of finalized utterances. Only
// the controller's event loop appends; readers get snapshots so an in-flight
// generation never observes a concurrent append.
type conversationHistory struct {
	mu         sync.Mutex
	utterances []llms.Utterance
}

func newConversationHistory() *conversationHistory {
	return &conversationHistory{}
}

func (h *conversationHistory) append(utterance llms.Utterance) {
	h.mu.Lock()
	h.utterances = append(h.utterances, utterance)
	h.mu.Unlock()
}

// snapshot returns a deep copy safe to hand to a generation task.
func (h *conversationHistory) snapshot() []llms.Utterance {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot := make([]llms.Utterance, 0, len(h.utterances))
	if err := copier.Copy(&snapshot, &h.utterances); err != nil {
		snapshot = append(snapshot[:0], h.utterances...)
	}
	return snapshot
}

func (h *conversationHistory) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.utterances)
}

// dropOldest removes and returns the n oldest utterances.
func (h *conversationHistory) dropOldest(n int) []llms.Utterance {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || len(h.utterances) == 0 {
		return nil
	}
	if n > len(h.utterances) {
		n = len(h.utterances)
	}

	dropped := make([]llms.Utterance, n)
	copy(dropped, h.utterances[:n])
	h.utterances = append(h.utterances[:0], h.utterances[n:]...)
	return dropped
}

// prepend inserts an utterance before everything currently recorded, used to
// place a summary of truncated turns.
func (h *conversationHistory) prepend(utterance llms.Utterance) {
	h.mu.Lock()
	h.utterances = append([]llms.Utterance{utterance}, h.utterances...)
	h.mu.Unlock()
}
