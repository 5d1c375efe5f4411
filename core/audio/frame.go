package audio

import "time"

// Frame is a single fixed-duration chunk of PCM audio. Frames are immutable
// once produced; ownership passes to the consumer on delivery.
type Frame struct {
	// Seq is a monotonically increasing sequence number assigned by the
	// producing source.
	Seq uint64
	// Timestamp is the capture time of the first sample in the frame.
	Timestamp time.Time
	// PCM holds the raw samples in the source's encoding.
	PCM []byte
}

// Duration returns the play time of the frame under the given encoding.
func (f Frame) Duration(encodingInfo EncodingInfo) time.Duration {
	return encodingInfo.Duration(len(f.PCM))
}
