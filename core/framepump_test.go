package pipeline

import (
	"testing"

	"github.com/voxloop/voxloop/core/audio"
	"github.com/voxloop/voxloop/core/vad"
)

func TestPumpBackfillsOnsetFramesFromLookback(t *testing.T) {
	detector := &scriptedDetector{
		boundaries: map[int]vad.Boundary{
			4: {Kind: vad.BoundaryStart, FrameOffset: 2},
		},
	}

	var segments []*speechSegment
	speechStarts := 0
	pump := newFramePump(detector,
		func() { speechStarts++ },
		func(segment *speechSegment) { segments = append(segments, segment) },
	)

	for seq := uint64(0); seq < 6; seq++ {
		pump.observe(audio.Frame{Seq: seq, PCM: []byte{byte(seq)}})
	}

	if speechStarts != 1 {
		t.Fatalf("expected one speech start, got %d", speechStarts)
	}
	if pump.recording == nil {
		t.Fatalf("expected an open recording after the start boundary")
	}
	// Frames 2, 3 and 4 belong to the onset (offset 2 plus the current
	// frame); frame 5 arrived while recording.
	if got := pump.recording.frameCount(); got != 4 {
		t.Fatalf("expected 4 recorded frames, got %d", got)
	}
	if pump.recording.frames[0].Seq != 2 {
		t.Fatalf("expected backfill to start at frame 2, got %d", pump.recording.frames[0].Seq)
	}
}

func TestPumpClosesSegmentAndTrimsTrailingSilence(t *testing.T) {
	detector := &scriptedDetector{
		boundaries: map[int]vad.Boundary{
			0: {Kind: vad.BoundaryStart, FrameOffset: 0},
			7: {Kind: vad.BoundaryEnd, FrameOffset: 3},
		},
	}

	var segments []*speechSegment
	pump := newFramePump(detector, func() {}, func(segment *speechSegment) {
		segments = append(segments, segment)
	})

	for seq := uint64(0); seq < 8; seq++ {
		pump.observe(audio.Frame{Seq: seq, PCM: []byte{byte(seq)}})
	}

	if len(segments) != 1 {
		t.Fatalf("expected one closed segment, got %d", len(segments))
	}
	// 8 recorded frames minus the 3-frame silence tail.
	if got := segments[0].frameCount(); got != 5 {
		t.Fatalf("expected 5 frames after trimming, got %d", got)
	}
	if pump.recording != nil {
		t.Fatalf("expected no open recording after the end boundary")
	}
}

func TestPumpIgnoresEndBoundaryWithoutRecording(t *testing.T) {
	detector := &scriptedDetector{
		boundaries: map[int]vad.Boundary{
			0: {Kind: vad.BoundaryEnd, FrameOffset: 0},
		},
	}

	segments := 0
	pump := newFramePump(detector, func() {}, func(*speechSegment) { segments++ })
	pump.observe(audio.Frame{PCM: []byte{0x00}})

	if segments != 0 {
		t.Fatalf("expected an end boundary without a recording to be ignored")
	}
}

func TestPumpResetDropsPartialSegment(t *testing.T) {
	detector := &scriptedDetector{
		boundaries: map[int]vad.Boundary{
			0: {Kind: vad.BoundaryStart, FrameOffset: 0},
		},
	}

	pump := newFramePump(detector, func() {}, func(*speechSegment) {})
	pump.observe(audio.Frame{PCM: []byte{0x00}})

	pump.reset()

	if pump.recording != nil || pump.lookback != nil {
		t.Fatalf("expected reset to drop the partial segment and look-back")
	}
	if !detector.resetCalled {
		t.Fatalf("expected reset to reach the detector")
	}
}

func TestSegmentTrimTailKeepsAtLeastOneFrame(t *testing.T) {
	segment := newSpeechSegment()
	segment.addFrame(audio.Frame{Seq: 0})
	segment.addFrame(audio.Frame{Seq: 1})

	segment.trimTail(5)
	if segment.frameCount() != 2 {
		t.Fatalf("expected an oversized trim to be ignored, got %d frames", segment.frameCount())
	}

	segment.trimTail(1)
	if segment.frameCount() != 1 {
		t.Fatalf("expected one frame after trimming, got %d", segment.frameCount())
	}
}

// scriptedDetector emits pre-programmed boundaries keyed by observed frame
// index.
type scriptedDetector struct {
	boundaries  map[int]vad.Boundary
	observed    int
	resetCalled bool
}

func (d *scriptedDetector) Observe(pcm []byte) (vad.Boundary, bool) {
	boundary, ok := d.boundaries[d.observed]
	d.observed++
	return boundary, ok
}

func (d *scriptedDetector) Reset() {
	d.resetCalled = true
}
