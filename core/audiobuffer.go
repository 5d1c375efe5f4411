package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxloop/voxloop/core/audio"
)

// audioBuffer queues synthesized audio between the synthesizer and the
// playback worker. Marks interleave with the audio so playback progress can
// be confirmed per synthesized sentence; confirmed marks advance the played
// playhead, which Pause uses to rewind unplayed audio.
type audioBuffer struct {
	mu sync.Mutex

	encodingInfo audio.EncodingInfo

	chunks        [][]byte
	allAudioAdded bool

	// sentPlayhead indexes the next chunk to hand to the playback worker;
	// playedPlayhead trails it at the last confirmed mark.
	sentPlayhead   int
	playedPlayhead int

	playingSince time.Time

	marks []audioMark

	stopped bool
	paused  bool

	updateSignal chan struct{}
}

type audioMark struct {
	id          string
	transcript  string
	position    int
	broadcasted bool
	confirmed   bool
}

// audioOrMark is one playback item: either an audio chunk or a mark to
// forward to the sink.
type audioOrMark struct {
	Audio  []byte
	MarkID string
	IsMark bool
}

func newAudioBuffer(encodingInfo audio.EncodingInfo) *audioBuffer {
	return &audioBuffer{
		encodingInfo: encodingInfo,
		updateSignal: make(chan struct{}, 1),
	}
}

func (b *audioBuffer) AddAudio(chunk []byte) {
	b.mu.Lock()
	b.chunks = append(b.chunks, chunk)
	b.mu.Unlock()
	b.signalUpdate()
}

// Mark records a playback checkpoint at the current end of the queued audio,
// carrying the transcript synthesized since the previous mark.
func (b *audioBuffer) Mark(transcript string) {
	b.mu.Lock()
	b.marks = append(b.marks, audioMark{
		id:         uuid.NewString(),
		transcript: transcript,
		position:   len(b.chunks),
	})
	b.mu.Unlock()
	b.signalUpdate()
}

// AllAudioAdded marks the synthesized stream complete; Items ends once
// everything queued has been played.
func (b *audioBuffer) AllAudioAdded() {
	b.mu.Lock()
	b.allAudioAdded = true
	b.mu.Unlock()
	b.signalUpdate()
}

// Items is a blocking iterator over queued audio and marks in playback
// order. It returns when the buffer is stopped or all added audio has been
// played and confirmed.
func (b *audioBuffer) Items(yield func(audioOrMark) bool) {
	started := sync.Once{}
	for {
		for {
			if ok := b.waitWhilePaused(); !ok {
				return
			}

			chunk, ok := b.nextChunk()
			if !ok {
				break
			}

			started.Do(b.markPlayingStart)

			if !yield(audioOrMark{Audio: chunk}) {
				return
			}
			if ok := b.broadcastMarks(yield); !ok {
				return
			}
		}
		if ok := b.waitForMoreAudio(yield); !ok {
			return
		}
	}
}

func (b *audioBuffer) waitWhilePaused() (ok bool) {
	for {
		b.mu.Lock()
		paused, stopped := b.paused, b.stopped
		b.mu.Unlock()

		if stopped {
			return false
		}
		if !paused {
			return true
		}

		<-b.updateSignal
	}
}

func (b *audioBuffer) nextChunk() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sentPlayhead >= len(b.chunks) {
		return nil, false
	}

	chunk := b.chunks[b.sentPlayhead]
	b.sentPlayhead++
	return chunk, true
}

func (b *audioBuffer) broadcastMarks(yield func(audioOrMark) bool) (ok bool) {
	b.mu.Lock()
	due := []string{}
	for i, mark := range b.marks {
		if mark.confirmed || mark.broadcasted {
			continue
		} else if mark.position > b.sentPlayhead {
			break
		}

		b.marks[i].broadcasted = true
		due = append(due, mark.id)
	}
	b.mu.Unlock()

	for _, markID := range due {
		if !yield(audioOrMark{MarkID: markID, IsMark: true}) {
			return false
		}
	}

	return true
}

func (b *audioBuffer) waitForMoreAudio(yield func(audioOrMark) bool) (ok bool) {
	for {
		b.mu.Lock()
		moreAudio := b.sentPlayhead < len(b.chunks)
		stopped := b.stopped
		done := b.playbackDoneLocked()
		b.mu.Unlock()

		if moreAudio {
			return !(stopped || done)
		}
		if stopped || done {
			return false
		}

		<-b.updateSignal
		// A mark can arrive after its audio has already been handed out;
		// broadcast here so the iterator cannot wait forever on it.
		if ok := b.broadcastMarks(yield); !ok {
			return false
		}
	}
}

func (b *audioBuffer) playbackDoneLocked() bool {
	if !b.allAudioAdded || b.sentPlayhead != len(b.chunks) {
		return false
	}
	// Without marks there is no playback confirmation to wait for.
	if len(b.marks) == 0 {
		return true
	}
	return b.playedPlayhead == len(b.chunks)
}

// MarkTranscript returns the transcript recorded with a mark.
func (b *audioBuffer) MarkTranscript(id string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.marks {
		if b.marks[i].id == id {
			return b.marks[i].transcript, true
		}
	}
	return "", false
}

// ConfirmMark records that playback reached the mark, advancing the played
// playhead.
func (b *audioBuffer) ConfirmMark(id string) {
	b.mu.Lock()
	shouldSignal := false
	for i, mark := range b.marks {
		if mark.confirmed {
			continue
		} else if !mark.broadcasted {
			break
		}
		if mark.id == id {
			b.marks[i].confirmed = true
			b.playedPlayhead = mark.position
			b.markPlayingStartLocked()
			if b.allAudioAdded && b.playedPlayhead == len(b.chunks) {
				shouldSignal = true
			}
			break
		}
	}
	b.mu.Unlock()

	if shouldSignal {
		b.signalUpdate()
	}
}

func (b *audioBuffer) markPlayingStart() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markPlayingStartLocked()
}

func (b *audioBuffer) markPlayingStartLocked() {
	b.playingSince = time.Now()
}

// Pause freezes playback and rewinds the send playhead to the estimated
// played position so Resume does not skip what the pause cut off.
func (b *audioBuffer) Pause() {
	b.mu.Lock()
	if b.playbackDoneLocked() || b.paused {
		b.mu.Unlock()
		return
	}

	b.paused = true
	b.rewindLocked()
	b.mu.Unlock()
	b.signalUpdate()
}

// rewindLocked estimates how much of the already-dispatched audio actually
// played since the last confirmed mark and resets the send playhead there.
func (b *audioBuffer) rewindLocked() {
	playedBytes := int(float64(time.Since(b.playingSince)) / float64(time.Second) *
		float64(b.encodingInfo.SampleRate) * float64(b.encodingInfo.Format.ByteSize()))

	chunksPlayed := 0
	for _, chunk := range b.chunks[b.playedPlayhead:] {
		playedBytes -= len(chunk)
		if playedBytes < 0 {
			break
		}
		chunksPlayed++
	}
	b.playedPlayhead += chunksPlayed
	b.sentPlayhead = b.playedPlayhead
	for i, mark := range b.marks {
		if mark.position > b.sentPlayhead {
			b.marks[i].broadcasted = false
		}
	}
}

func (b *audioBuffer) Resume() {
	b.mu.Lock()
	if b.playbackDoneLocked() || !b.paused {
		b.mu.Unlock()
		return
	}

	b.paused = false
	b.markPlayingStartLocked()
	b.mu.Unlock()
	b.signalUpdate()
}

// Stop ends iteration; queued but unplayed audio is discarded.
func (b *audioBuffer) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()
	b.signalUpdate()
}

func (b *audioBuffer) signalUpdate() {
	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}
