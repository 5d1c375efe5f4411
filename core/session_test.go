package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxloop/voxloop/core/audio"
	"github.com/voxloop/voxloop/core/events"
	"github.com/voxloop/voxloop/core/llms"
	"github.com/voxloop/voxloop/core/speechtotext"
	"github.com/voxloop/voxloop/core/texttospeech"
	"github.com/voxloop/voxloop/core/vad"
)

func TestSpokenTurnRoundTrip(t *testing.T) {
	detector := &scriptedDetector{
		boundaries: map[int]vad.Boundary{
			2: {Kind: vad.BoundaryStart, FrameOffset: 0},
			8: {Kind: vad.BoundaryEnd, FrameOffset: 2},
		},
	}

	frames := make([]audio.Frame, 10)
	for i := range frames {
		frames[i] = audio.Frame{Seq: uint64(i), PCM: []byte{0x00, 0x10}}
	}

	transcriber := &scriptedTranscriber{transcripts: []string{"what's the weather?"}}
	llm := &scriptedLLM{streams: []scriptedStream{
		{chunks: []llms.StreamChunk{scriptedContentChunk{content: "Sunny."}}},
	}}
	sink := &recordingSink{}
	recorder := newEventRecorder()

	session, err := NewSession(SessionConfig{},
		WithFrameSource(&scriptedFrameSource{frames: frames, closed: make(chan struct{})}),
		WithVAD(detector),
		WithTranscriber(transcriber),
		WithResponseGenerator(llm),
		WithSynthesizer(&scriptedSpeechClient{}),
		WithSink(sink),
		WithObserver(recorder),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	recorder.waitForN(t, events.KindUtteranceFinalized, 2)

	history := session.History()
	if len(history) != 2 {
		t.Fatalf("expected a user and an assistant utterance, got %d", len(history))
	}
	if history[0].Role != llms.RoleUser || history[0].Content != "what's the weather?" {
		t.Fatalf("expected the transcript as the user utterance, got %+v", history[0])
	}
	if history[1].Role != llms.RoleAssistant || history[1].Content != "Sunny." {
		t.Fatalf("expected the generated response as the assistant utterance, got %+v", history[1])
	}

	if recorder.count(events.KindAssistantPlaybackEnded) == 0 {
		t.Fatalf("expected playback to have ended")
	}

	sink.mu.Lock()
	sent := len(sink.sent)
	sink.mu.Unlock()
	if sent == 0 {
		t.Fatalf("expected synthesized audio to reach the sink")
	}
}

func TestTypedPromptGeneratesResponse(t *testing.T) {
	llm := &scriptedLLM{streams: []scriptedStream{
		{chunks: []llms.StreamChunk{scriptedContentChunk{content: "Here to help."}}},
	}}
	recorder := newEventRecorder()

	session, err := NewSession(SessionConfig{},
		WithResponseGenerator(llm),
		WithObserver(recorder),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	session.SendPrompt("hello")
	recorder.waitForN(t, events.KindUtteranceFinalized, 2)

	history := session.History()
	if len(history) != 2 {
		t.Fatalf("expected two utterances, got %d", len(history))
	}
	if history[0].Role != llms.RoleUser || history[0].Content != "hello" {
		t.Fatalf("expected the typed prompt as the user utterance, got %+v", history[0])
	}
	if history[1].Role != llms.RoleAssistant || history[1].Content != "Here to help." {
		t.Fatalf("expected the response as the assistant utterance, got %+v", history[1])
	}
}

func TestBargeInCancelsInFlightTurn(t *testing.T) {
	llm := &blockingLLM{started: make(chan struct{}, 1), release: make(chan struct{})}
	recorder := newEventRecorder()

	session, err := NewSession(SessionConfig{},
		WithResponseGenerator(llm),
		WithObserver(recorder),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	session.SendPrompt("tell me a story")
	select {
	case <-llm.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for generation to start")
	}

	session.controller.post(speechStartedEvent{})

	recorder.waitForN(t, events.KindTurnCancelled, 1)
	if recorder.count(events.KindInterruptionDetected) == 0 {
		t.Fatalf("expected an interruption to be detected")
	}

	time.Sleep(50 * time.Millisecond)
	history := session.History()
	if len(history) != 1 {
		t.Fatalf("expected only the user prompt in history after a barge-in, got %d utterances", len(history))
	}
	if history[0].Role != llms.RoleUser {
		t.Fatalf("expected the surviving utterance to be the user's, got %+v", history[0])
	}
}

func TestBargeInDuringPlaybackFlushesSink(t *testing.T) {
	llm := &scriptedLLM{streams: []scriptedStream{
		{chunks: []llms.StreamChunk{scriptedContentChunk{content: "Once upon a time."}}},
	}}
	sink := &gatedPlaybackSink{playing: make(chan struct{}, 1), release: make(chan struct{})}
	recorder := newEventRecorder()

	session, err := NewSession(SessionConfig{},
		WithResponseGenerator(llm),
		WithSynthesizer(&scriptedSpeechClient{}),
		WithSink(sink),
		WithObserver(recorder),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	session.SendPrompt("tell me a story")
	select {
	case <-sink.playing:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback to reach the sink")
	}

	session.controller.post(speechStartedEvent{})
	recorder.waitForN(t, events.KindTurnCancelled, 1)

	close(sink.release)
	time.Sleep(50 * time.Millisecond)

	sink.mu.Lock()
	cleared := sink.clears
	lateSends := sink.lateSends
	sink.mu.Unlock()
	if cleared == 0 {
		t.Fatalf("expected the sink to be flushed on barge-in")
	}
	if lateSends != 0 {
		t.Fatalf("expected no audio sent to the sink after the flush, got %d chunks", lateSends)
	}

	history := session.History()
	if len(history) != 1 || history[0].Role != llms.RoleUser {
		t.Fatalf("expected only the user prompt in history after a barge-in, got %+v", history)
	}
	if got := session.State(); got != StateListening {
		t.Fatalf("expected the session to return to listening, got %s", got)
	}
}

func TestSegmentWithoutTranscriberReturnsToListening(t *testing.T) {
	recorder := newEventRecorder()

	session, err := NewSession(SessionConfig{}, WithObserver(recorder))
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	session.controller.post(segmentClosedEvent{segment: testSegment(4)})
	recorder.waitForN(t, events.KindUserTranscriptFinal, 1)

	time.Sleep(50 * time.Millisecond)
	if got := len(session.History()); got != 0 {
		t.Fatalf("expected no history entry without a transcriber, got %d", got)
	}
	if got := session.State(); got != StateListening {
		t.Fatalf("expected the session to return to listening, got %s", got)
	}
}

func TestRepeatedTranscriberFailuresEscalateExactlyOnce(t *testing.T) {
	transcriber := &scriptedTranscriber{err: fmt.Errorf("deepgram unreachable")}
	recorder := newEventRecorder()

	session, err := NewSession(SessionConfig{},
		WithTranscriber(transcriber),
		WithObserver(recorder),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		session.controller.post(segmentClosedEvent{segment: testSegment(4)})
		recorder.waitForN(t, events.KindStageError, attempt)
	}

	if err := session.Wait(); err == nil {
		t.Fatalf("expected the session to end with a fatal error")
	}
	if got := recorder.count(events.KindSessionFatal); got != 1 {
		t.Fatalf("expected exactly one session fatal event, got %d", got)
	}

	time.Sleep(50 * time.Millisecond)
	if got := transcriber.callCount(); got != 3 {
		t.Fatalf("expected exactly 3 transcription attempts, got %d", got)
	}
}

func TestShortSegmentsAreDiscarded(t *testing.T) {
	transcriber := &scriptedTranscriber{transcripts: []string{"should not be asked"}}
	recorder := newEventRecorder()

	session, err := NewSession(SessionConfig{MinSpeechFrames: 3},
		WithTranscriber(transcriber),
		WithObserver(recorder),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	session.controller.post(segmentClosedEvent{segment: testSegment(2)})
	recorder.waitForN(t, events.KindUserSegmentDiscarded, 1)

	if got := transcriber.callCount(); got != 0 {
		t.Fatalf("expected no transcription for a discarded segment, got %d attempts", got)
	}
	if got := session.State(); got != StateListening {
		t.Fatalf("expected the session to keep listening, got %s", got)
	}
}

func TestEmptyTranscriptRestartsListening(t *testing.T) {
	transcriber := &scriptedTranscriber{transcripts: []string{"   "}}
	recorder := newEventRecorder()

	session, err := NewSession(SessionConfig{},
		WithTranscriber(transcriber),
		WithObserver(recorder),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	session.controller.post(segmentClosedEvent{segment: testSegment(4)})
	recorder.waitForN(t, events.KindUserTranscriptFinal, 1)

	time.Sleep(50 * time.Millisecond)
	if got := len(session.History()); got != 0 {
		t.Fatalf("expected no history entry for a blank transcript, got %d", got)
	}
	if got := session.State(); got != StateListening {
		t.Fatalf("expected the session to return to listening, got %s", got)
	}
}

func TestGreetingIsSpokenAndRecorded(t *testing.T) {
	recorder := newEventRecorder()

	session, err := NewSession(SessionConfig{Greeting: "Welcome!"},
		WithSynthesizer(&scriptedSpeechClient{}),
		WithSink(&recordingSink{}),
		WithObserver(recorder),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	recorder.waitForN(t, events.KindUtteranceFinalized, 1)

	history := session.History()
	if len(history) != 1 || history[0].Role != llms.RoleAssistant || history[0].Content != "Welcome!" {
		t.Fatalf("expected the greeting as the first assistant utterance, got %+v", history)
	}
	if got := session.State(); got != StateListening {
		t.Fatalf("expected the session to listen after the greeting, got %s", got)
	}
}

func TestHistoryTruncationKeepsRecentTurns(t *testing.T) {
	llm := &scriptedLLM{streams: []scriptedStream{
		{chunks: []llms.StreamChunk{scriptedContentChunk{content: "one"}}},
		{chunks: []llms.StreamChunk{scriptedContentChunk{content: "two"}}},
		{chunks: []llms.StreamChunk{scriptedContentChunk{content: "three"}}},
	}}
	recorder := newEventRecorder()

	session, err := NewSession(SessionConfig{MaxHistoryTurns: 2, HistoryTruncationPolicy: TruncateKeepRecent},
		WithResponseGenerator(llm),
		WithObserver(recorder),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	for i, prompt := range []string{"first", "second", "third"} {
		session.SendPrompt(prompt)
		recorder.waitForN(t, events.KindUtteranceFinalized, (i+1)*2)
	}

	history := session.History()
	if len(history) != 2 {
		t.Fatalf("expected the history to be capped at 2 utterances, got %d", len(history))
	}
	last := history[len(history)-1]
	if last.Role != llms.RoleAssistant || last.Content != "three" {
		t.Fatalf("expected the newest assistant response to survive, got %+v", last)
	}
}

func TestHistoryTruncationSummarizesDroppedTurns(t *testing.T) {
	llm := &promptAwareLLM{answer: "ok", summary: "they exchanged greetings"}
	recorder := newEventRecorder()

	session, err := NewSession(SessionConfig{MaxHistoryTurns: 2, HistoryTruncationPolicy: TruncateSummarize},
		WithResponseGenerator(llm),
		WithObserver(recorder),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	session.SendPrompt("first")
	recorder.waitForN(t, events.KindUtteranceFinalized, 2)
	session.SendPrompt("second")
	recorder.waitForN(t, events.KindUtteranceFinalized, 4)

	deadline := time.Now().Add(2 * time.Second)
	for {
		history := session.History()
		if len(history) > 0 && strings.HasPrefix(history[0].Content, "Summary of the earlier conversation:") {
			if history[0].Role != llms.RoleAssistant {
				t.Fatalf("expected the summary to be an assistant utterance, got %+v", history[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the summary utterance, history: %+v", history)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPauseAndResumeWithoutActiveTurnIsSafe(t *testing.T) {
	session, err := NewSession(SessionConfig{})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	session.PauseSpeaking()
	session.ResumeSpeaking()

	time.Sleep(50 * time.Millisecond)
	if err := session.Err(); err != nil {
		t.Fatalf("expected the session to still be healthy, got %v", err)
	}
}

func TestStopBeforeStartReleasesWaiters(t *testing.T) {
	session, err := NewSession(SessionConfig{})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	session.Stop()

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected a clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for Wait after Stop")
	}
}

func testSegment(frames int) *speechSegment {
	segment := newSpeechSegment()
	for i := 0; i < frames; i++ {
		segment.addFrame(audio.Frame{Seq: uint64(i), PCM: []byte{0x00, 0x10}})
	}
	return segment
}

// eventRecorder captures observer events so tests can wait on them.
type eventRecorder struct {
	mu      sync.Mutex
	all     []events.Event
	updates chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{updates: make(chan struct{}, 1)}
}

func (r *eventRecorder) OnEvent(event events.Event) {
	r.mu.Lock()
	r.all = append(r.all, event)
	r.mu.Unlock()

	select {
	case r.updates <- struct{}{}:
	default:
	}
}

func (r *eventRecorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, event := range r.all {
		if event.Kind() == kind {
			count++
		}
	}
	return count
}

func (r *eventRecorder) waitForN(t *testing.T, kind events.Kind, n int) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		if r.count(kind) >= n {
			return
		}
		select {
		case <-r.updates:
		case <-deadline:
			t.Fatalf("timed out waiting for %d %q events, have %d", n, kind, r.count(kind))
		}
	}
}

// scriptedFrameSource replays a fixed frame sequence, then idles until the
// session closes it.
type scriptedFrameSource struct {
	frames []audio.Frame

	closed    chan struct{}
	closeOnce sync.Once
}

func (s *scriptedFrameSource) Start(ctx context.Context, onFrame func(audio.Frame), onEnd func()) error {
	go func() {
		for _, frame := range s.frames {
			select {
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			default:
			}
			onFrame(frame)
		}

		select {
		case <-ctx.Done():
		case <-s.closed:
		}
		onEnd()
	}()
	return nil
}

func (s *scriptedFrameSource) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (s *scriptedFrameSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// scriptedTranscriber transcribes each segment with the next scripted
// transcript, or fails every attempt when err is set.
type scriptedTranscriber struct {
	mu          sync.Mutex
	transcripts []string
	err         error
	calls       int
}

func (c *scriptedTranscriber) NewTranscription(_ context.Context, opts ...speechtotext.TranscriptionOption) (speechtotext.Transcription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if c.err != nil {
		return nil, c.err
	}

	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	transcript := ""
	if index := c.calls - 1; index < len(c.transcripts) {
		transcript = c.transcripts[index]
	}
	return &scriptedTranscription{transcript: transcript, options: options}, nil
}

func (c *scriptedTranscriber) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type scriptedTranscription struct {
	transcript string
	options    speechtotext.TranscriptionOptions
	finished   bool
}

func (t *scriptedTranscription) SendAudio([]byte) error { return nil }

func (t *scriptedTranscription) Finish() error {
	if t.finished {
		return nil
	}
	t.finished = true

	if t.options.InterimTranscriptCallback != nil {
		t.options.InterimTranscriptCallback(t.transcript)
	}
	if t.options.TranscriptCallback != nil {
		t.options.TranscriptCallback(t.transcript)
	}
	return nil
}

func (t *scriptedTranscription) Cancel() error { return nil }

// scriptedSpeechClient synthesizes text into one audio chunk per SendText
// call and reports marks with the text since the previous mark.
type scriptedSpeechClient struct{}

func (c *scriptedSpeechClient) NewSpeechGenerator(_ context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	options := texttospeech.TextToSpeechOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &scriptedSpeechGenerator{options: options}, nil
}

type scriptedSpeechGenerator struct {
	mu      sync.Mutex
	options texttospeech.TextToSpeechOptions
	pending strings.Builder
	chars   int
	ended   bool
	closed  bool
}

func (g *scriptedSpeechGenerator) SendText(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ended || g.closed {
		return fmt.Errorf("speech generator no longer accepts text")
	}

	g.pending.WriteString(text)
	g.chars += len(text)
	if g.options.SpeechAudioCallback != nil && len(text) > 0 {
		g.options.SpeechAudioCallback(bytes.Repeat([]byte{0x7F}, len(text)))
	}
	return nil
}

func (g *scriptedSpeechGenerator) Mark() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ended || g.closed {
		return fmt.Errorf("speech generator no longer accepts marks")
	}

	if g.options.SpeechMarkCallback != nil {
		g.options.SpeechMarkCallback(g.pending.String())
	}
	g.pending.Reset()
	return nil
}

func (g *scriptedSpeechGenerator) EndOfText() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ended || g.closed {
		return nil
	}
	g.ended = true

	if g.options.SpeechEndedCallback != nil {
		g.options.SpeechEndedCallback(texttospeech.SpeechEndedReport{CharactersSynthesized: g.chars})
	}
	return nil
}

func (g *scriptedSpeechGenerator) Cancel() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

func (g *scriptedSpeechGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

// blockingLLM streams one chunk, then holds the stream open until released
// or cancelled.
type blockingLLM struct {
	started chan struct{}
	release chan struct{}
}

func (c *blockingLLM) PromptWithStream(_ context.Context, _ *string, _ ...llms.StreamingPromptOption) llms.Stream {
	return blockingStream{llm: c}
}

type blockingStream struct{ llm *blockingLLM }

func (s blockingStream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		if !yield(scriptedContentChunk{content: "Let me think"}, nil) {
			return
		}

		select {
		case s.llm.started <- struct{}{}:
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-s.llm.release:
		}
		yield(scriptedContentChunk{content: " about that."}, nil)
	}
}

// promptAwareLLM answers summary requests with the scripted summary and
// everything else with the scripted answer.
type promptAwareLLM struct {
	answer  string
	summary string
}

func (c *promptAwareLLM) PromptWithStream(_ context.Context, prompt *string, _ ...llms.StreamingPromptOption) llms.Stream {
	content := c.answer
	if prompt != nil && strings.HasPrefix(*prompt, "Summarize") {
		content = c.summary
	}
	return scriptedStream{chunks: []llms.StreamChunk{scriptedContentChunk{content: content}}}
}

// gatedPlaybackSink blocks the first audio chunk it receives until released,
// so a turn can be interrupted while playback is in flight. Operations are
// recorded in completion order.
type gatedPlaybackSink struct {
	mu      sync.Mutex
	playing chan struct{}
	release chan struct{}

	gateOnce sync.Once

	ops []string
	// clears counts completed flushes; lateSends counts audio chunks whose
	// delivery started after the first flush.
	clears    int
	lateSends int
}

func (s *gatedPlaybackSink) SendAudio(chunk []byte) error {
	s.mu.Lock()
	if s.clears > 0 {
		s.lateSends++
	}
	s.mu.Unlock()

	s.gateOnce.Do(func() {
		select {
		case s.playing <- struct{}{}:
		default:
		}
		<-s.release
	})

	s.mu.Lock()
	s.ops = append(s.ops, "audio")
	s.mu.Unlock()
	return nil
}

func (s *gatedPlaybackSink) Clear() error {
	s.mu.Lock()
	s.clears++
	s.ops = append(s.ops, "clear")
	s.mu.Unlock()
	return nil
}

func (s *gatedPlaybackSink) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (s *gatedPlaybackSink) lastOp() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ops) == 0 {
		return ""
	}
	return s.ops[len(s.ops)-1]
}
