package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/voxloop/voxloop/core/audio"
)

// speechSegment is a contiguous run of frames bounded by detector start and
// end boundaries. It lives from speech onset until the transcriber consumed
// it or it was discarded.
type speechSegment struct {
	id        string
	startedAt time.Time
	frames    []audio.Frame
}

func newSpeechSegment() *speechSegment {
	return &speechSegment{
		id:        uuid.NewString(),
		startedAt: time.Now(),
	}
}

func (s *speechSegment) addFrame(frame audio.Frame) {
	s.frames = append(s.frames, frame)
}

// trimTail drops the last n frames, used to cut the silence run that closed
// the segment.
func (s *speechSegment) trimTail(n int) {
	if n <= 0 || n >= len(s.frames) {
		return
	}
	s.frames = s.frames[:len(s.frames)-n]
}

func (s *speechSegment) frameCount() int { return len(s.frames) }

func (s *speechSegment) duration(encodingInfo audio.EncodingInfo) time.Duration {
	var total time.Duration
	for _, frame := range s.frames {
		total += frame.Duration(encodingInfo)
	}
	return total
}
