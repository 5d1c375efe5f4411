package pipeline

import (
	"github.com/voxloop/voxloop/core/audio"
	"github.com/voxloop/voxloop/core/vad"
)

// lookbackDepth caps how many recent frames the pump retains so a detector's
// start-boundary look-back cannot clip segment onsets.
const lookbackDepth = 32

// framePump feeds captured frames through the voice-activity detector and
// assembles speech segments. It runs on the frame source's delivery
// goroutine and never blocks beyond the detector's per-frame work; the
// controller learns about boundaries through the callbacks.
type framePump struct {
	detector vad.Detector

	onSpeechStart func()
	onSegment     func(segment *speechSegment)

	recording *speechSegment
	lookback  []audio.Frame
}

func newFramePump(detector vad.Detector, onSpeechStart func(), onSegment func(*speechSegment)) *framePump {
	return &framePump{
		detector:      detector,
		onSpeechStart: onSpeechStart,
		onSegment:     onSegment,
	}
}

func (p *framePump) observe(frame audio.Frame) {
	boundary, crossed := p.detector.Observe(frame.PCM)

	if p.recording != nil {
		p.recording.addFrame(frame)
	}

	p.lookback = append(p.lookback, frame)
	if len(p.lookback) > lookbackDepth {
		p.lookback = p.lookback[len(p.lookback)-lookbackDepth:]
	}

	if !crossed {
		return
	}

	switch boundary.Kind {
	case vad.BoundaryStart:
		if p.recording != nil {
			return
		}

		p.recording = newSpeechSegment()
		// The boundary fired FrameOffset frames late; recover the onset from
		// the look-back window. The current frame is the last look-back entry.
		backfill := boundary.FrameOffset + 1
		if backfill > len(p.lookback) {
			backfill = len(p.lookback)
		}
		for _, heldBack := range p.lookback[len(p.lookback)-backfill:] {
			p.recording.addFrame(heldBack)
		}
		p.onSpeechStart()

	case vad.BoundaryEnd:
		if p.recording == nil {
			return
		}

		segment := p.recording
		p.recording = nil
		segment.trimTail(boundary.FrameOffset)
		p.onSegment(segment)
	}
}

// reset drops any partial segment, used when the session stops mid-speech.
func (p *framePump) reset() {
	p.recording = nil
	p.lookback = nil
	p.detector.Reset()
}
