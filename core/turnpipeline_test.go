package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/voxloop/voxloop/core/audio"
	"github.com/voxloop/voxloop/core/events"
)

// A chunk can pass the cancellation check and land at the sink after Cancel
// has already flushed it. Playback must end with one more flush so the
// straddling chunk never keeps playing.
func TestCancelledPlaybackEndsWithAFlush(t *testing.T) {
	sink := &gatedPlaybackSink{playing: make(chan struct{}, 1), release: make(chan struct{})}

	p := &turnPipeline{
		synthesizer: newSynthesizer(&scriptedSpeechClient{}),
		sink:        newAudioSink(sink),
		textBuffer:  newTextBuffer(),
		audioBuffer: newAudioBuffer(audio.GetDefaultEncodingInfo()),
		emitEvent:   func(events.Event) {},
	}
	if err := p.synthesizer.init(context.Background(), audio.GetDefaultEncodingInfo(),
		func([]byte) {}, func(string) {}, func() {}); err != nil {
		t.Fatalf("failed to initialize the synthesizer: %v", err)
	}

	p.audioBuffer.AddAudio([]byte{0x01, 0x02})
	p.audioBuffer.AddAudio([]byte{0x03, 0x04})

	done := make(chan error, 1)
	go func() { done <- p.play(context.Background()) }()

	select {
	case <-sink.playing:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback to reach the sink")
	}

	p.Cancel()
	close(sink.release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected playback to finish cleanly, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback to finish")
	}

	if got := sink.lastOp(); got != "clear" {
		t.Fatalf("expected playback to end with a flush, got %q as the last sink operation", got)
	}
}
