package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/voxloop/voxloop/core/audio"
	"github.com/voxloop/voxloop/core/texttospeech"
)

// synthesizer wraps one speech generation for one turn. init opens the
// generator lazily so the text worker can start before the speech worker and
// both can safely wait on the connection outcome.
type synthesizer struct {
	client Synthesizer

	// initialized closes when init completes so workers can safely proceed.
	initialized chan struct{}
	initOnce    sync.Once
	initErr     error

	generatorMu sync.RWMutex
	generator   texttospeech.SpeechGenerator

	connected    atomic.Bool
	closeStarted atomic.Bool
}

func newSynthesizer(client Synthesizer) *synthesizer {
	return &synthesizer{
		client:      client,
		initialized: make(chan struct{}),
	}
}

func (s *synthesizer) isConfigured() bool {
	return s != nil && s.client != nil
}

func (s *synthesizer) init(
	ctx context.Context,
	encodingInfo audio.EncodingInfo,
	onAudio func([]byte),
	onMark func(string),
	onEnded func(),
) error {
	if s == nil {
		return nil
	}

	s.initOnce.Do(func() {
		defer close(s.initialized)
		if !s.isConfigured() || s.closeStarted.Load() {
			return
		}

		generator, err := s.client.NewSpeechGenerator(ctx,
			texttospeech.WithSpeechAudioCallback(onAudio),
			texttospeech.WithSpeechMarkCallback(onMark),
			texttospeech.WithSpeechEndedCallback(func(texttospeech.SpeechEndedReport) {
				onEnded()
			}),
			texttospeech.WithEncodingInfo(encodingInfo),
		)
		if err != nil {
			s.initErr = fmt.Errorf("failed to create speech generator: %w", err)
			return
		}

		s.generatorMu.Lock()
		if s.closeStarted.Load() {
			s.generatorMu.Unlock()
			_ = generator.Close()
			return
		}
		s.generator = generator
		s.generatorMu.Unlock()
		s.connected.Store(true)
	})

	return s.initErr
}

func (s *synthesizer) waitUntilInitialized(ctx context.Context) bool {
	if s == nil || s.initialized == nil {
		return false
	}

	select {
	case <-s.initialized:
		return s.connected.Load()
	case <-ctx.Done():
		return false
	}
}

func (s *synthesizer) currentGenerator() texttospeech.SpeechGenerator {
	if s == nil {
		return nil
	}

	s.generatorMu.RLock()
	defer s.generatorMu.RUnlock()
	return s.generator
}

func (s *synthesizer) SendText(text string) error {
	if generator := s.currentGenerator(); generator != nil {
		if err := generator.SendText(text); err != nil {
			return fmt.Errorf("failed to send text to synthesizer: %w", err)
		}
	}
	return nil
}

func (s *synthesizer) Mark() error {
	if generator := s.currentGenerator(); generator != nil {
		if err := generator.Mark(); err != nil {
			return fmt.Errorf("failed to mark synthesizer text: %w", err)
		}
	}
	return nil
}

func (s *synthesizer) EndOfText() error {
	if generator := s.currentGenerator(); generator != nil {
		if err := generator.Mark(); err != nil {
			return fmt.Errorf("failed to mark synthesizer text end: %w", err)
		}
		if err := generator.EndOfText(); err != nil {
			return fmt.Errorf("failed to end synthesizer text: %w", err)
		}
	}
	return nil
}

func (s *synthesizer) Cancel() error {
	if generator := s.currentGenerator(); generator != nil {
		if err := generator.Cancel(); err != nil {
			return fmt.Errorf("failed to cancel synthesizer: %w", err)
		}
	}
	return nil
}

func (s *synthesizer) Close() error {
	if s == nil {
		return nil
	}

	if !s.closeStarted.CompareAndSwap(false, true) {
		return nil
	}

	s.generatorMu.Lock()
	generator := s.generator
	s.generator = nil
	s.connected.Store(false)
	s.generatorMu.Unlock()

	if generator != nil {
		if err := generator.Close(); err != nil {
			return fmt.Errorf("failed to close speech generator: %w", err)
		}
	}

	return nil
}
