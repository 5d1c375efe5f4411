// Package vad defines the voice-activity detection contract used by the
// session's frame pump.
package vad

// BoundaryKind distinguishes speech onset from speech offset.
type BoundaryKind int

const (
	BoundaryStart BoundaryKind = iota
	BoundaryEnd
)

func (k BoundaryKind) String() string {
	switch k {
	case BoundaryStart:
		return "start"
	case BoundaryEnd:
		return "end"
	}
	return "unknown"
}

// Boundary is a segmentation event emitted by a detector.
type Boundary struct {
	Kind BoundaryKind
	// FrameOffset is how many frames before the current one the boundary
	// actually occurred. Detectors that debounce onsets report the look-back
	// so segment starts are not clipped.
	FrameOffset int
}

// Detector classifies audio frames as speech or silence and emits boundary
// events. Observe must be called once per frame in arrival order and must not
// block for more than roughly one frame duration; detectors keep whatever
// internal hysteresis they need.
type Detector interface {
	// Observe consumes one frame of PCM and reports a boundary if the frame
	// crossed one.
	Observe(pcm []byte) (Boundary, bool)
	// Reset clears all internal state.
	Reset()
}
