package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/voxloop/voxloop/core/events"
	"github.com/voxloop/voxloop/core/llms"
	"go.opentelemetry.io/otel/codes"
)

// turnPipeline runs one assistant turn: response generation into a text
// buffer, text into the synthesizer with sentence marks, synthesized audio
// through the audio buffer to the sink with playback confirmation. The three
// workers run concurrently so playback starts while generation is still
// streaming.
type turnPipeline struct {
	epoch uint64

	generator   *generator
	synthesizer *synthesizer
	sink        *audioSink

	textBuffer  *textBuffer
	audioBuffer *audioBuffer

	emitEvent    eventEmitter
	onFirstChunk func()

	firstChunkOnce sync.Once

	// greetingText short-circuits generation: the text is synthesized as-is.
	greetingText *string

	spokenMu sync.Mutex
	spoken   strings.Builder

	// toolCalls is written by the generation worker and read after Run's
	// workers have finished.
	toolCalls []llms.ToolCall

	cancelled atomic.Bool
}

// turnOutcome is what a finished pipeline hands back to the controller.
type turnOutcome struct {
	// Response is the full generated text.
	Response string
	// Spoken is the transcript confirmed as actually played.
	Spoken    string
	ToolCalls []llms.ToolCall
	// Cancelled reports that the turn was superseded rather than completed
	// or failed.
	Cancelled bool
}

func newTurnPipeline(
	epoch uint64,
	generator *generator,
	synthesizerClient Synthesizer,
	sink *audioSink,
	emitEvent eventEmitter,
	onFirstChunk func(),
) *turnPipeline {
	return &turnPipeline{
		epoch:        epoch,
		generator:    generator,
		synthesizer:  newSynthesizer(synthesizerClient),
		sink:         sink,
		textBuffer:   newTextBuffer(),
		audioBuffer:  newAudioBuffer(sink.EncodingInfo()),
		emitEvent:    emitEvent,
		onFirstChunk: onFirstChunk,
	}
}

// Run executes the turn to completion, cancellation or failure. Failures are
// returned as StageFailure values so the controller can classify them;
// cancellation is reported through the outcome, never as an error.
func (p *turnPipeline) Run(ctx context.Context, prompt *string, history []llms.Utterance) (turnOutcome, error) {
	ctx, span := tracer.Start(ctx, "assistant turn")
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var workerErr error
	workerErrMu := sync.Mutex{}
	addWorkerErr := func(err error) {
		if err == nil {
			return
		}
		workerErrMu.Lock()
		workerErr = errors.Join(workerErr, err)
		workerErrMu.Unlock()
	}

	run := func(name string, kind ErrorKind, f func(context.Context) error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				addWorkerErr(newStageFailure(kind, fmt.Errorf("%s worker panicked: %v", name, recovered)))
				cancel()
			}
		}()

		if err := f(ctx); err != nil {
			addWorkerErr(newStageFailure(kind, fmt.Errorf("%s worker failed: %w", name, err)))
			cancel()
		}
	}

	wg := &sync.WaitGroup{}
	wg.Add(3)
	go func() {
		defer wg.Done()
		run("generation", ErrorKindGeneration, func(ctx context.Context) error {
			return p.generate(ctx, prompt, history)
		})
	}()
	go func() {
		defer wg.Done()
		run("synthesis", ErrorKindSynthesis, p.synthesize)
	}()
	go func() {
		defer wg.Done()
		run("playback", ErrorKindTransport, p.play)
	}()

	wg.Wait()

	if err := p.synthesizer.Close(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	outcome := turnOutcome{
		Response:  p.textBuffer.String(),
		Spoken:    p.spokenTranscript(),
		ToolCalls: p.toolCalls,
		Cancelled: p.IsCancelled(),
	}

	if workerErr != nil && !outcome.Cancelled {
		return outcome, workerErr
	}
	return outcome, nil
}

func (p *turnPipeline) generate(ctx context.Context, prompt *string, history []llms.Utterance) error {
	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()

	defer p.textBuffer.TextComplete()

	if p.greetingText != nil {
		p.notifyFirstChunk()
		p.textBuffer.AddChunk(*p.greetingText)
		p.emitEvent(events.NewAssistantResponseSegment(*p.greetingText))
		p.emitEvent(events.NewAssistantResponseFinal(*p.greetingText))
		return nil
	}

	response, err := p.generator.generate(ctx, prompt, history, func(chunk string) {
		p.notifyFirstChunk()
		p.textBuffer.AddChunk(chunk)
		p.emitEvent(events.NewAssistantResponseSegment(chunk))
	}, p.IsCancelled)
	if err != nil {
		err = fmt.Errorf("failed to generate response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if response != nil {
		p.toolCalls = response.ToolCalls
		p.emitEvent(events.NewAssistantResponseFinal(response.Content))
	}
	return nil
}

func (p *turnPipeline) synthesize(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.textBuffer.Clear()
		case <-done:
		}
	}()

	_, span := tracer.Start(ctx, "synthesize response text")
	defer span.End()

	if err := p.synthesizer.init(ctx, p.sink.EncodingInfo(),
		func(chunk []byte) {
			p.audioBuffer.AddAudio(chunk)
			p.emitEvent(events.NewAssistantSpeechFrame(chunk))
		},
		p.audioBuffer.Mark,
		p.audioBuffer.AllAudioAdded,
	); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for chunk := range p.textBuffer.Chunks {
		if p.IsCancelled() {
			break
		}

		if err := p.synthesizer.SendText(chunk); err != nil {
			span.RecordError(err)
		}
		if strings.ContainsAny(chunk, ".?!") {
			if err := p.synthesizer.Mark(); err != nil {
				span.RecordError(err)
			}
		}
	}

	if err := p.synthesizer.EndOfText(); err != nil {
		span.RecordError(fmt.Errorf("failed to end synthesizer text: %w", err))
	}

	return nil
}

func (p *turnPipeline) play(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.audioBuffer.Stop()
		case <-done:
		}
	}()

	if ok := p.synthesizer.waitUntilInitialized(ctx); !ok {
		return nil
	}

	_, span := tracer.Start(ctx, "play response audio")
	defer span.End()

playbackLoop:
	for item := range p.audioBuffer.Items {
		if item.IsMark {
			if err := p.sink.Mark(item.MarkID, func(markID string) {
				if transcript, ok := p.audioBuffer.MarkTranscript(markID); ok {
					p.appendSpoken(transcript)
				}
				p.audioBuffer.ConfirmMark(markID)
			}); err != nil {
				span.RecordError(err)
			}
			continue
		}

		if p.IsCancelled() {
			if err := p.sink.Clear(); err != nil {
				span.RecordError(err)
			}
			break playbackLoop
		}

		if err := p.sink.SendAudio(item.Audio); err != nil {
			return err
		}
	}

	if p.IsCancelled() {
		// A chunk that passed the cancellation check above may have landed at
		// the sink after Cancel already flushed it. Flush once more so nothing
		// straddling the cancel keeps playing.
		if err := p.sink.Clear(); err != nil {
			span.RecordError(err)
		}
		return nil
	}

	p.emitEvent(events.NewAssistantPlaybackEnded(p.spokenTranscript()))
	return nil
}

func (p *turnPipeline) notifyFirstChunk() {
	p.firstChunkOnce.Do(func() {
		if p.onFirstChunk != nil {
			p.onFirstChunk()
		}
	})
}

func (p *turnPipeline) appendSpoken(transcript string) {
	p.spokenMu.Lock()
	p.spoken.WriteString(transcript)
	p.spokenMu.Unlock()
}

func (p *turnPipeline) spokenTranscript() string {
	p.spokenMu.Lock()
	defer p.spokenMu.Unlock()
	return p.spoken.String()
}

// Pause freezes playback without cancelling the turn. The sink's buffered
// audio is discarded; the audio buffer rewinds so Resume replays from the
// played position.
func (p *turnPipeline) Pause() {
	if p == nil {
		return
	}

	p.audioBuffer.Pause()
	_ = p.sink.Clear()
}

func (p *turnPipeline) Resume() {
	if p == nil {
		return
	}

	p.audioBuffer.Resume()
}

// Cancel abandons the turn. It is idempotent and guarantees no further audio
// reaches the sink once it returns.
func (p *turnPipeline) Cancel() {
	if p == nil || !p.cancelled.CompareAndSwap(false, true) {
		return
	}

	p.textBuffer.Clear()
	_ = p.synthesizer.Cancel()
	p.audioBuffer.Stop()
	_ = p.sink.Clear()
}

func (p *turnPipeline) IsCancelled() bool {
	if p == nil {
		return false
	}

	return p.cancelled.Load()
}
