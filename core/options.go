package pipeline

import (
	"github.com/voxloop/voxloop/core/llms"
	"github.com/voxloop/voxloop/core/vad"
)

type SessionOption func(*Session)

// WithFrameSource sets the inbound audio source. Without one the session is
// text-only and driven through SendPrompt.
func WithFrameSource(source AudioFrameSource) SessionOption {
	return func(s *Session) { s.frameSource = source }
}

// WithVAD sets the voice-activity detector. Without one an energy detector
// tuned from the session config is used.
func WithVAD(detector vad.Detector) SessionOption {
	return func(s *Session) { s.detector = detector }
}

func WithTranscriber(transcriber Transcriber) SessionOption {
	return func(s *Session) { s.transcriber = transcriber }
}

func WithResponseGenerator(generator ResponseGenerator) SessionOption {
	return func(s *Session) { s.generator.client = generator }
}

func WithSynthesizer(synthesizer Synthesizer) SessionOption {
	return func(s *Session) { s.synthesizer = synthesizer }
}

func WithSink(sink AudioSink) SessionOption {
	return func(s *Session) { s.sink.set(sink) }
}

// WithObserver registers an observer for session events. Repeated use adds
// observers.
func WithObserver(observer Observer) SessionOption {
	return func(s *Session) { s.observers = append(s.observers, observer) }
}

// WithTools exposes tools to the response generator.
func WithTools(tools ...llms.Tool) SessionOption {
	return func(s *Session) { s.generator.setTools(tools...) }
}
