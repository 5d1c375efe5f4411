package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/voxloop/voxloop/core/audio"
	"github.com/voxloop/voxloop/core/llms"
	"github.com/voxloop/voxloop/core/vad"
	"github.com/voxloop/voxloop/core/vad/energy"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Session is one live spoken conversation with exactly one remote
// participant. Construct it with NewSession, drive it with Start, and stop
// it with Stop; Wait blocks until the session has ended and reports the
// session-fatal error if one escalated.
type Session struct {
	cfg SessionConfig

	frameSource AudioFrameSource
	detector    vad.Detector
	transcriber Transcriber
	generator   *generator
	synthesizer Synthesizer
	sink        *audioSink
	observers   []Observer

	controller *controller
	pump       *framePump

	baseCtx   context.Context
	cancel    context.CancelFunc
	started   bool
	closeOnce sync.Once
}

// NewSession validates the config and assembles a session from the
// configured stage clients. Stage clients are injected ready to use; any
// model loading or connection warmup happens before this call.
func NewSession(cfg SessionConfig, opts ...SessionOption) (*Session, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	s := &Session{
		cfg:       cfg,
		generator: newGenerator(nil),
		sink:      newAudioSink(nil),
	}
	s.generator.setInstructions(cfg.SystemPrompt)

	for _, opt := range opts {
		opt(s)
	}

	if s.detector == nil {
		s.detector = energy.NewDetector(vad.WithEndFrames(cfg.MinSilenceFrames))
	}

	s.controller = newController(cfg, s.transcriber, s.generator, s.synthesizer, s.sink, newObserverEmitter(s.observers))
	s.pump = newFramePump(s.detector,
		func() { s.controller.post(speechStartedEvent{}) },
		func(segment *speechSegment) { s.controller.post(segmentClosedEvent{segment: segment}) },
	)

	return s, nil
}

// Start brings the session live: the event loop starts, the optional
// greeting plays, and inbound audio begins flowing through the detector.
//
// Contract: call Start at most once per session.
func (s *Session) Start(ctx context.Context) error {
	if s.started {
		return fmt.Errorf("session already started")
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.baseCtx = ctx
	s.cancel = cancel

	if s.frameSource != nil {
		s.controller.sourceEncoding = s.frameSource.EncodingInfo()
	} else {
		s.controller.sourceEncoding = audio.GetDefaultEncodingInfo()
	}

	s.controller.start(ctx)
	go s.controller.run(ctx)

	if s.frameSource != nil {
		if err := s.frameSource.Start(ctx,
			s.pump.observe,
			func() { s.controller.post(sourceEndedEvent{}) },
		); err != nil {
			s.Stop()
			return newStageFailure(ErrorKindTransport, fmt.Errorf("failed to start frame source: %w", err))
		}
	}

	return nil
}

// Stop tears the session down. In-flight work is cancelled; Wait unblocks
// once the event loop has drained. Stop is idempotent.
func (s *Session) Stop() {
	s.closeOnce.Do(func() {
		if !s.started {
			close(s.controller.loopDone)
			return
		}

		s.controller.post(stopEvent{})

		if s.frameSource != nil {
			if err := s.frameSource.Close(); err != nil {
				recordedErr := fmt.Errorf("failed to close frame source: %w", err)
				span := trace.SpanFromContext(s.baseCtx)
				span.RecordError(recordedErr)
				span.SetStatus(codes.Error, recordedErr.Error())
			}
		}

		<-s.controller.loopDone
		s.pump.reset()
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Wait blocks until the session ends and returns the session-fatal error if
// repeated stage failures escalated, nil otherwise.
func (s *Session) Wait() error {
	<-s.controller.loopDone
	return s.controller.fatalErr
}

// Err reports the session-fatal error once the session has ended, nil while
// it is still running.
func (s *Session) Err() error {
	select {
	case <-s.controller.loopDone:
		return s.controller.fatalErr
	default:
		return nil
	}
}

// State returns the current turn state.
func (s *Session) State() TurnState {
	return s.controller.currentState()
}

// History returns a snapshot of the conversation so far.
func (s *Session) History() []llms.Utterance {
	return s.controller.history.snapshot()
}

// SendPrompt injects a typed user utterance, superseding any in-flight turn.
func (s *Session) SendPrompt(text string) {
	s.controller.post(promptEvent{text: text})
}

// PauseSpeaking freezes assistant playback; ResumeSpeaking continues from
// the estimated played position.
func (s *Session) PauseSpeaking() {
	s.controller.post(pauseEvent{})
}

func (s *Session) ResumeSpeaking() {
	s.controller.post(resumeEvent{})
}
