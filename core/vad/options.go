package vad

// DetectorOptions tune boundary debouncing shared by detector
// implementations.
type DetectorOptions struct {
	// StartFrames is the number of consecutive speech-classified frames
	// required before a start boundary is emitted.
	StartFrames int
	// EndFrames is the number of consecutive silence-classified frames
	// required before an end boundary is emitted.
	EndFrames int
}

type DetectorOption func(*DetectorOptions)

func WithStartFrames(frames int) DetectorOption {
	return func(o *DetectorOptions) {
		if frames > 0 {
			o.StartFrames = frames
		}
	}
}

func WithEndFrames(frames int) DetectorOption {
	return func(o *DetectorOptions) {
		if frames > 0 {
			o.EndFrames = frames
		}
	}
}
