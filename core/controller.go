package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/voxloop/voxloop/core/audio"
	"github.com/voxloop/voxloop/core/events"
	"github.com/voxloop/voxloop/core/llms"
	"github.com/voxloop/voxloop/core/speechtotext"
)

// controllerEventQueueCapacity bounds the controller's inbox. Producers block
// on a full queue, which backpressures boundary and stage events rather than
// buffering them without limit.
const controllerEventQueueCapacity = 16

// controllerEvent is an input to the controller's event loop. Stage outputs
// carry the epoch of the task that produced them so the loop can discard
// results of superseded turns.
type controllerEvent interface{ isControllerEvent() }

type speechStartedEvent struct{}
type segmentClosedEvent struct{ segment *speechSegment }
type transcriptInterimEvent struct {
	epoch      uint64
	transcript string
}
type transcriptFinalEvent struct {
	epoch      uint64
	transcript string
	segment    *speechSegment
}
type transcriptFailedEvent struct {
	epoch uint64
	err   error
}
type firstChunkEvent struct{ epoch uint64 }
type pipelineDoneEvent struct {
	epoch     uint64
	outcome   turnOutcome
	err       error
	startedAt time.Time
}
type promptEvent struct{ text string }
type pauseEvent struct{}
type resumeEvent struct{}
type summaryReadyEvent struct{ summary string }
type sourceEndedEvent struct{}
type stopEvent struct{}

func (speechStartedEvent) isControllerEvent()     {}
func (segmentClosedEvent) isControllerEvent()     {}
func (transcriptInterimEvent) isControllerEvent() {}
func (transcriptFinalEvent) isControllerEvent()   {}
func (transcriptFailedEvent) isControllerEvent()  {}
func (firstChunkEvent) isControllerEvent()        {}
func (pipelineDoneEvent) isControllerEvent()      {}
func (promptEvent) isControllerEvent()            {}
func (pauseEvent) isControllerEvent()             {}
func (resumeEvent) isControllerEvent()            {}
func (summaryReadyEvent) isControllerEvent()      {}
func (sourceEndedEvent) isControllerEvent()       {}
func (stopEvent) isControllerEvent()              {}

// controller owns the turn state machine. It is the single writer of the
// turn state and the conversation history; everything it reacts to arrives
// through its event queue and is handled on one goroutine.
type controller struct {
	cfg       SessionConfig
	emitEvent eventEmitter

	transcriber Transcriber
	generator   *generator
	synthesizer Synthesizer
	sink        *audioSink

	sourceEncoding audio.EncodingInfo

	state       TurnState
	stateMirror atomic.Int32
	// epoch tags every spawned task; bumping it invalidates all in-flight
	// output of the superseded turn.
	epoch uint64

	events   chan controllerEvent
	history  *conversationHistory
	failures failureTracker

	activeTranscription *task
	activePipeline      *turnPipeline
	activeTask          *task

	pendingSummary bool

	stopping bool
	fatalErr error

	baseCtx  context.Context
	loopDone chan struct{}
}

func newController(
	cfg SessionConfig,
	transcriber Transcriber,
	generator *generator,
	synthesizer Synthesizer,
	sink *audioSink,
	emitEvent eventEmitter,
) *controller {
	c := &controller{
		cfg:         cfg,
		emitEvent:   emitEvent,
		transcriber: transcriber,
		generator:   generator,
		synthesizer: synthesizer,
		sink:        sink,
		events:      make(chan controllerEvent, controllerEventQueueCapacity),
		history:     newConversationHistory(),
		failures:    failureTracker{threshold: cfg.FailureThreshold},
		loopDone:    make(chan struct{}),
		state:       StateIdle,
	}
	c.stateMirror.Store(int32(StateIdle))
	return c
}

// post delivers an event to the loop, blocking while the queue is full. It
// returns without delivery once the loop has ended.
func (c *controller) post(event controllerEvent) {
	select {
	case c.events <- event:
	case <-c.loopDone:
	}
}

func (c *controller) currentState() TurnState {
	return TurnState(c.stateMirror.Load())
}

// start kicks off the session: the greeting plays in Idle when configured,
// otherwise the controller begins listening immediately.
func (c *controller) start(ctx context.Context) {
	c.baseCtx = ctx

	if c.cfg.Greeting != "" {
		c.startTurnPipeline(nil, &c.cfg.Greeting)
	} else {
		c.transitionTo(StateListening)
	}
}

func (c *controller) run(ctx context.Context) {
	defer close(c.loopDone)

	for {
		select {
		case <-ctx.Done():
			c.teardown()
			return
		case event := <-c.events:
			c.handle(event)
			if c.stopping {
				c.teardown()
				return
			}
		}
	}
}

func (c *controller) handle(event controllerEvent) {
	switch event := event.(type) {
	case speechStartedEvent:
		c.handleSpeechStarted()
	case segmentClosedEvent:
		c.handleSegmentClosed(event.segment)
	case transcriptInterimEvent:
		if event.epoch == c.epoch {
			c.emitEvent(events.NewUserTranscriptInterim(event.transcript))
		}
	case transcriptFinalEvent:
		c.handleTranscriptFinal(event)
	case transcriptFailedEvent:
		c.handleTranscriptFailed(event)
	case firstChunkEvent:
		if event.epoch == c.epoch && c.state == StateGenerating {
			c.transitionTo(StateSpeaking)
		}
	case pipelineDoneEvent:
		c.handlePipelineDone(event)
	case promptEvent:
		c.handlePrompt(event.text)
	case pauseEvent:
		if c.activePipeline != nil {
			c.activePipeline.Pause()
		}
	case resumeEvent:
		if c.activePipeline != nil {
			c.activePipeline.Resume()
		}
	case summaryReadyEvent:
		c.pendingSummary = false
		if event.summary != "" {
			c.history.prepend(llms.Utterance{
				ID:        uuid.NewString(),
				Role:      llms.RoleAssistant,
				Content:   "Summary of the earlier conversation: " + event.summary,
				StartedAt: time.Now(),
				EndedAt:   time.Now(),
			})
		}
	case sourceEndedEvent, stopEvent:
		c.stopping = true
	}
}

// handleSpeechStarted implements the interrupt path: user speech is always
// accepted, and speech onset while the assistant is transcribing, generating
// or speaking supersedes the in-flight turn.
func (c *controller) handleSpeechStarted() {
	switch c.state {
	case StateTranscribing:
		c.cancelActiveTranscription()
		c.epoch++
		c.transitionTo(StateListening)

	case StateGenerating, StateSpeaking, StateIdle:
		if c.activePipeline == nil {
			break
		}
		c.emitEvent(events.NewInterruptionDetected(c.state.String()))
		c.cancelActivePipeline()
		c.epoch++
		c.emitEvent(events.NewTurnCancelled())
		c.transitionTo(StateListening)
	}

	c.emitEvent(events.NewUserSpeechStarted())
}

func (c *controller) handleSegmentClosed(segment *speechSegment) {
	c.emitEvent(events.NewUserSpeechEnded())

	if c.state != StateListening {
		return
	}

	if segment.frameCount() < c.cfg.MinSpeechFrames {
		c.emitEvent(events.NewUserSegmentDiscarded(segment.frameCount()))
		return
	}

	c.transitionTo(StateTranscribing)
	c.startTranscription(segment)
}

// startTranscription streams the closed segment's audio to a fresh
// transcription and finalizes it. The task is epoch-tagged; callbacks from a
// superseded transcription are discarded by the loop.
func (c *controller) startTranscription(segment *speechSegment) {
	epoch := c.epoch

	if c.transcriber == nil {
		// Posting to our own inbox from inside the loop can deadlock when the
		// queue is full, so finalize the empty transcript directly.
		c.handleTranscriptFinal(transcriptFinalEvent{epoch: epoch, transcript: "", segment: segment})
		return
	}

	ctx, cancel := context.WithCancel(c.baseCtx)
	transcriptionTask := newTask(epoch, cancel)
	c.activeTranscription = transcriptionTask

	go func() {
		transcription, err := c.transcriber.NewTranscription(ctx,
			speechtotext.WithEncodingInfo(c.sourceEncoding),
			speechtotext.WithInterimTranscriptCallback(func(transcript string) {
				c.post(transcriptInterimEvent{epoch: epoch, transcript: transcript})
			}),
			speechtotext.WithTranscriptCallback(func(transcript string) {
				c.post(transcriptFinalEvent{epoch: epoch, transcript: transcript, segment: segment})
			}),
			speechtotext.WithErrorCallback(func(err error) {
				c.post(transcriptFailedEvent{epoch: epoch, err: err})
			}),
		)
		if err != nil {
			c.post(transcriptFailedEvent{epoch: epoch, err: err})
			return
		}

		cancelTranscription := func() { _ = transcription.Cancel() }
		for _, frame := range segment.frames {
			if transcriptionTask.IsCancelled() {
				cancelTranscription()
				return
			}
			if err := transcription.SendAudio(frame.PCM); err != nil {
				c.post(transcriptFailedEvent{epoch: epoch, err: err})
				cancelTranscription()
				return
			}
		}

		if transcriptionTask.IsCancelled() {
			cancelTranscription()
			return
		}
		if err := transcription.Finish(); err != nil {
			c.post(transcriptFailedEvent{epoch: epoch, err: err})
			cancelTranscription()
		}
	}()
}

func (c *controller) handleTranscriptFinal(event transcriptFinalEvent) {
	if event.epoch != c.epoch || c.state != StateTranscribing {
		return
	}
	c.activeTranscription = nil

	c.emitEvent(events.NewUserTranscriptFinal(event.transcript))

	if strings.TrimSpace(event.transcript) == "" {
		c.transitionTo(StateListening)
		return
	}

	c.failures.reset()

	utterance := llms.Utterance{
		ID:        uuid.NewString(),
		Role:      llms.RoleUser,
		Content:   event.transcript,
		StartedAt: event.segment.startedAt,
		EndedAt:   time.Now(),
	}
	c.appendUtterance(utterance)

	c.transitionTo(StateGenerating)
	c.startTurnPipeline(&event.transcript, nil)
}

func (c *controller) handleTranscriptFailed(event transcriptFailedEvent) {
	if event.epoch != c.epoch || c.state != StateTranscribing {
		return
	}
	c.activeTranscription = nil

	c.transitionTo(StateListening)
	c.recordFailure(ErrorKindTranscription, event.err)
}

// startTurnPipeline launches one assistant turn. A non-nil greeting skips
// generation and synthesizes the given text directly.
func (c *controller) startTurnPipeline(prompt *string, greeting *string) {
	epoch := c.epoch
	ctx, cancel := context.WithCancel(c.baseCtx)

	pipeline := newTurnPipeline(epoch, c.generator, c.synthesizer, c.sink, c.emitEvent, func() {
		c.post(firstChunkEvent{epoch: epoch})
	})
	pipeline.greetingText = greeting

	c.activePipeline = pipeline
	c.activeTask = newTask(epoch, func() {
		pipeline.Cancel()
		cancel()
	})

	history := c.history.snapshot()
	startedAt := time.Now()

	go func() {
		outcome, err := pipeline.Run(ctx, prompt, history)
		cancel()
		c.post(pipelineDoneEvent{epoch: epoch, outcome: outcome, err: err, startedAt: startedAt})
	}()
}

func (c *controller) handlePipelineDone(event pipelineDoneEvent) {
	if event.epoch != c.epoch {
		return
	}
	c.activePipeline = nil
	c.activeTask = nil

	if event.err != nil {
		kind := ErrorKindGeneration
		var failure *StageFailure
		if errors.As(event.err, &failure) {
			kind = failure.Kind
		}
		c.transitionTo(StateListening)
		c.recordFailure(kind, event.err)
		return
	}

	if event.outcome.Cancelled {
		c.transitionTo(StateListening)
		return
	}

	if event.outcome.Response != "" {
		c.failures.reset()
		c.appendUtterance(llms.Utterance{
			ID:        uuid.NewString(),
			Role:      llms.RoleAssistant,
			Content:   event.outcome.Response,
			StartedAt: event.startedAt,
			EndedAt:   time.Now(),
		})
	}

	c.transitionTo(StateListening)
}

// handlePrompt injects a typed user utterance, superseding whatever turn is
// in flight, and generates a response for it directly.
func (c *controller) handlePrompt(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	switch c.state {
	case StateTranscribing:
		c.cancelActiveTranscription()
		c.epoch++
		c.transitionTo(StateListening)
	case StateGenerating, StateSpeaking, StateIdle:
		if c.activePipeline != nil {
			c.cancelActivePipeline()
			c.epoch++
			c.emitEvent(events.NewTurnCancelled())
		}
		c.transitionTo(StateListening)
	}

	now := time.Now()
	c.appendUtterance(llms.Utterance{
		ID:        uuid.NewString(),
		Role:      llms.RoleUser,
		Content:   text,
		StartedAt: now,
		EndedAt:   now,
	})

	c.transitionTo(StateGenerating)
	c.startTurnPipeline(&text, nil)
}

func (c *controller) appendUtterance(utterance llms.Utterance) {
	c.history.append(utterance)
	c.emitEvent(events.NewUtteranceFinalized(string(utterance.Role), utterance.Content, utterance.StartedAt, utterance.EndedAt))
	c.maybeTruncateHistory()
}

func (c *controller) maybeTruncateHistory() {
	if c.cfg.MaxHistoryTurns <= 0 {
		return
	}

	overflow := c.history.len() - c.cfg.MaxHistoryTurns
	if overflow <= 0 {
		return
	}

	switch c.cfg.HistoryTruncationPolicy {
	case TruncateSummarize:
		if c.pendingSummary {
			return
		}
		dropped := c.history.dropOldest(overflow)
		c.pendingSummary = true
		go c.summarize(dropped)
	default:
		c.history.dropOldest(overflow)
	}
}

// summarize folds truncated utterances into a single summary through the
// response generator. It runs off the loop; the result is applied back on it.
func (c *controller) summarize(dropped []llms.Utterance) {
	var conversation strings.Builder
	for _, utterance := range dropped {
		fmt.Fprintf(&conversation, "%s: %s\n", utterance.Role, utterance.Content)
	}
	prompt := "Summarize the following conversation in a few sentences, keeping any facts worth remembering:\n\n" + conversation.String()

	summarizer := newGenerator(c.generator.client)
	response, err := summarizer.generate(c.baseCtx, &prompt, nil, nil, nil)
	if err != nil || response == nil {
		c.post(summaryReadyEvent{})
		return
	}
	c.post(summaryReadyEvent{summary: response.Content})
}

func (c *controller) recordFailure(kind ErrorKind, err error) {
	c.emitEvent(events.NewStageError(string(kind), err))

	if c.failures.record(kind) {
		fatal := fmt.Errorf("%s stage failed %d consecutive times: %w", kind, c.failures.count, err)
		c.emitEvent(events.NewSessionFatal(string(kind), fatal))
		c.fatalErr = fatal
		c.stopping = true
	}
}

func (c *controller) cancelActiveTranscription() {
	c.activeTranscription.Cancel()
	c.activeTranscription = nil
}

func (c *controller) cancelActivePipeline() {
	c.activeTask.Cancel()
	c.activePipeline = nil
	c.activeTask = nil
}

func (c *controller) teardown() {
	c.cancelActiveTranscription()
	c.cancelActivePipeline()
	c.transitionTo(StateIdle)
}

func (c *controller) transitionTo(next TurnState) {
	if c.state == next {
		return
	}
	if !c.state.canTransitionTo(next) {
		logger.Warn("refusing invalid turn state transition",
			"from", c.state.String(), "to", next.String())
		return
	}

	old := c.state
	c.state = next
	c.stateMirror.Store(int32(next))
	c.emitEvent(events.NewTurnStateChanged(old.String(), next.String()))
}
