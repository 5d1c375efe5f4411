// Package pipeline contains the turn-taking core of a spoken-dialogue
// session: the state machine that decides who is speaking, the streaming
// response pipeline, and the plumbing that cancels in-flight work when the
// user barges in.
//
// The package depends on pluggable stage clients only through the contracts
// below; any implementation satisfying them can drive a session.
package pipeline

import (
	"context"

	"github.com/voxloop/voxloop/core/audio"
	"github.com/voxloop/voxloop/core/llms"
	"github.com/voxloop/voxloop/core/speechtotext"
	"github.com/voxloop/voxloop/core/texttospeech"
)

// AudioFrameSource delivers a continuous sequence of fixed-duration audio
// frames from the inbound stream.
type AudioFrameSource interface {
	// Start begins frame delivery and returns once capture is running.
	// onFrame is called once per captured frame in capture order; onEnd is
	// called exactly once when the stream ends for good, which is distinct
	// from a silence gap.
	Start(ctx context.Context, onFrame func(frame audio.Frame), onEnd func()) error
	EncodingInfo() audio.EncodingInfo
	Close() error
}

// AudioSink accepts synthesized audio for playback in send order. Clear
// discards anything buffered but not yet played, without delay.
type AudioSink interface {
	SendAudio(audio []byte) error
	Clear() error
	EncodingInfo() audio.EncodingInfo
}

// MarkingAudioSink is an AudioSink that can confirm playback progress. The
// callback fires once the audio sent before the mark has actually played.
type MarkingAudioSink interface {
	AudioSink
	Mark(id string, onPlayed func(id string)) error
}

// Transcriber opens one transcription per speech segment.
type Transcriber interface {
	NewTranscription(ctx context.Context, opts ...speechtotext.TranscriptionOption) (speechtotext.Transcription, error)
}

// ResponseGenerator produces a streamed model response for a prompt against
// a conversation history snapshot.
type ResponseGenerator interface {
	PromptWithStream(ctx context.Context, prompt *string, opts ...llms.StreamingPromptOption) llms.Stream
}

// Synthesizer opens one speech generation per assistant response.
type Synthesizer interface {
	NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error)
}
