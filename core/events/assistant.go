package events

// KindAssistantResponseSegment identifies a streamed response text segment.
const KindAssistantResponseSegment Kind = "assistant_response.segment"

// AssistantResponseSegment carries one streamed text segment of the response
// being generated.
type AssistantResponseSegment struct {
	Base
	Segment string
}

func NewAssistantResponseSegment(segment string) AssistantResponseSegment {
	return AssistantResponseSegment{Base: NewBase(KindAssistantResponseSegment), Segment: segment}
}

// KindAssistantResponseFinal identifies the end of response text streaming.
const KindAssistantResponseFinal Kind = "assistant_response.final"

// AssistantResponseFinal marks the response text stream as complete and
// carries the full generated text.
type AssistantResponseFinal struct {
	Base
	Response string
}

func NewAssistantResponseFinal(response string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), Response: response}
}

// KindAssistantSpeechFrame identifies a synthesized speech audio frame.
const KindAssistantSpeechFrame Kind = "assistant_speech.frame"

// AssistantSpeechFrame carries one synthesized audio frame headed for
// playback.
type AssistantSpeechFrame struct {
	Base
	Audio []byte
}

func NewAssistantSpeechFrame(audio []byte) AssistantSpeechFrame {
	return AssistantSpeechFrame{Base: NewBase(KindAssistantSpeechFrame), Audio: audio}
}

// KindAssistantPlaybackEnded identifies completed playback of a response.
const KindAssistantPlaybackEnded Kind = "assistant_playback.ended"

// AssistantPlaybackEnded marks playback completion for the current response
// and carries the transcript of what was actually spoken.
type AssistantPlaybackEnded struct {
	Base
	Transcript string
}

func NewAssistantPlaybackEnded(transcript string) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), Transcript: transcript}
}
