package pipeline

import (
	"context"
	"fmt"

	"github.com/voxloop/voxloop/core/audio"
)

// audioSink normalizes sinks with and without mark confirmation behind one
// facade. Without mark support, mark callbacks fire as soon as the preceding
// audio has been handed over, which keeps playback accounting progressing.
type audioSink struct {
	client  AudioSink
	marking MarkingAudioSink
}

func newAudioSink(client AudioSink) *audioSink {
	sink := &audioSink{}
	sink.set(client)
	return sink
}

func (s *audioSink) set(client AudioSink) {
	if s == nil {
		return
	}

	s.client = client
	s.marking = nil
	if marking, ok := client.(MarkingAudioSink); ok {
		s.marking = marking
	}
}

func (s *audioSink) isConfigured() bool {
	return s != nil && s.client != nil
}

func (s *audioSink) supportsMarks() bool {
	return s != nil && s.marking != nil
}

func (s *audioSink) EncodingInfo() audio.EncodingInfo {
	if !s.isConfigured() {
		return audio.GetDefaultEncodingInfo()
	}
	return s.client.EncodingInfo()
}

func (s *audioSink) SendAudio(chunk []byte) error {
	if !s.isConfigured() {
		return nil
	}

	if err := s.client.SendAudio(chunk); err != nil {
		return fmt.Errorf("failed to send audio to sink: %w", err)
	}
	return nil
}

func (s *audioSink) Mark(id string, onPlayed func(string)) error {
	if s.marking != nil {
		if err := s.marking.Mark(id, onPlayed); err != nil {
			return fmt.Errorf("failed to mark sink playback: %w", err)
		}
		return nil
	}

	onPlayed(id)
	return nil
}

// Clear discards buffered but unplayed audio without delay.
func (s *audioSink) Clear() error {
	if !s.isConfigured() {
		return nil
	}

	if err := s.client.Clear(); err != nil {
		return fmt.Errorf("failed to clear sink: %w", err)
	}
	return nil
}

func (s *audioSink) Close(ctx context.Context) error {
	if !s.isConfigured() {
		return nil
	}

	switch c := s.client.(type) {
	case interface{ Close(context.Context) error }:
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("failed to close sink: %w", err)
		}
	case interface{ Close(context.Context) }:
		c.Close(ctx)
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close sink: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}
