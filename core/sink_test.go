package pipeline

import (
	"sync"
	"testing"

	"github.com/voxloop/voxloop/core/audio"
)

func TestUnconfiguredSinkSwallowsAudio(t *testing.T) {
	sink := newAudioSink(nil)

	if err := sink.SendAudio([]byte{0x01}); err != nil {
		t.Fatalf("expected an unconfigured sink to accept audio, got %v", err)
	}
	if err := sink.Clear(); err != nil {
		t.Fatalf("expected an unconfigured sink to accept clear, got %v", err)
	}
	if got := sink.EncodingInfo(); got != audio.GetDefaultEncodingInfo() {
		t.Fatalf("expected the default encoding from an unconfigured sink, got %+v", got)
	}
}

func TestMarkWithoutSupportConfirmsImmediately(t *testing.T) {
	sink := newAudioSink(&recordingSink{})

	confirmed := ""
	if err := sink.Mark("mark-1", func(id string) { confirmed = id }); err != nil {
		t.Fatalf("expected the mark fallback not to fail, got %v", err)
	}
	if confirmed != "mark-1" {
		t.Fatalf("expected the mark to confirm immediately, got %q", confirmed)
	}
	if sink.supportsMarks() {
		t.Fatalf("expected a plain sink not to report mark support")
	}
}

func TestMarkingSinkIsDetected(t *testing.T) {
	client := &recordingMarkingSink{}
	sink := newAudioSink(client)

	if !sink.supportsMarks() {
		t.Fatalf("expected the marking sink to be detected")
	}

	if err := sink.Mark("mark-2", func(string) {}); err != nil {
		t.Fatalf("expected marking to succeed, got %v", err)
	}
	if len(client.marks) != 1 || client.marks[0] != "mark-2" {
		t.Fatalf("expected the mark to reach the client, got %v", client.marks)
	}
}

func TestSendAudioReachesTheClient(t *testing.T) {
	client := &recordingSink{}
	sink := newAudioSink(client)

	if err := sink.SendAudio([]byte{0xAA}); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("expected one chunk at the client, got %d", len(client.sent))
	}
}

type recordingSink struct {
	mu      sync.Mutex
	sent    [][]byte
	cleared int
}

func (s *recordingSink) SendAudio(chunk []byte) error {
	s.mu.Lock()
	s.sent = append(s.sent, append([]byte(nil), chunk...))
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Clear() error {
	s.mu.Lock()
	s.cleared++
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

type recordingMarkingSink struct {
	recordingSink
	marks []string
}

func (s *recordingMarkingSink) Mark(id string, onPlayed func(string)) error {
	s.marks = append(s.marks, id)
	onPlayed(id)
	return nil
}
