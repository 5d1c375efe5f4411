package events

// KindUserSpeechStarted identifies the start of detected user speech.
const KindUserSpeechStarted Kind = "user_input.speech_started"

// UserSpeechStarted marks the voice activity detector reporting speech onset.
type UserSpeechStarted struct{ Base }

func NewUserSpeechStarted() UserSpeechStarted {
	return UserSpeechStarted{Base: NewBase(KindUserSpeechStarted)}
}

// KindUserSpeechEnded identifies the end of detected user speech.
const KindUserSpeechEnded Kind = "user_input.speech_ended"

// UserSpeechEnded marks the voice activity detector reporting speech offset.
type UserSpeechEnded struct{ Base }

func NewUserSpeechEnded() UserSpeechEnded {
	return UserSpeechEnded{Base: NewBase(KindUserSpeechEnded)}
}

// KindUserSegmentDiscarded identifies a speech segment rejected before
// transcription for being shorter than the configured minimum.
const KindUserSegmentDiscarded Kind = "user_input.segment_discarded"

// UserSegmentDiscarded marks a below-threshold speech segment that never
// reached the transcriber.
type UserSegmentDiscarded struct {
	Base
	Frames int
}

func NewUserSegmentDiscarded(frames int) UserSegmentDiscarded {
	return UserSegmentDiscarded{Base: NewBase(KindUserSegmentDiscarded), Frames: frames}
}

// KindUserTranscriptInterim identifies a mutable interim transcript snapshot.
const KindUserTranscriptInterim Kind = "user_input.transcript_interim"

// UserTranscriptInterim carries the current interim transcript of the
// in-flight utterance. It may be revised by later events.
type UserTranscriptInterim struct {
	Base
	Transcript string
}

func NewUserTranscriptInterim(transcript string) UserTranscriptInterim {
	return UserTranscriptInterim{Base: NewBase(KindUserTranscriptInterim), Transcript: transcript}
}

// KindUserTranscriptFinal identifies the terminal transcript of an utterance.
const KindUserTranscriptFinal Kind = "user_input.transcript_final"

// UserTranscriptFinal carries the final transcript for the utterance.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

func NewUserTranscriptFinal(transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript}
}
