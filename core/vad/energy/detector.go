// Package energy implements an RMS-energy voice activity detector with
// hysteresis. It expects 16-bit little-endian mono PCM.
package energy

import (
	"math"

	"github.com/voxloop/voxloop/core/vad"
)

const (
	defaultSpeechThreshold  = 0.015
	defaultSilenceThreshold = 0.008
	defaultStartFrames      = 3
	defaultEndFrames        = 25
)

// Detector classifies frames by RMS level. Two thresholds with hysteresis
// avoid flickering between speech and silence around the trigger level.
type Detector struct {
	speechThreshold  float64
	silenceThreshold float64
	startFrames      int
	endFrames        int

	inSpeech     bool
	speechCount  int
	silenceCount int
}

type Option func(*Detector)

// WithThresholds overrides the RMS trigger levels. The speech threshold must
// be at or above the silence threshold for the hysteresis to hold.
func WithThresholds(speech, silence float64) Option {
	return func(d *Detector) {
		if speech > 0 && silence > 0 && speech >= silence {
			d.speechThreshold = speech
			d.silenceThreshold = silence
		}
	}
}

func NewDetector(opts ...vad.DetectorOption) *Detector {
	options := vad.DetectorOptions{
		StartFrames: defaultStartFrames,
		EndFrames:   defaultEndFrames,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Detector{
		speechThreshold:  defaultSpeechThreshold,
		silenceThreshold: defaultSilenceThreshold,
		startFrames:      options.StartFrames,
		endFrames:        options.EndFrames,
	}
}

// Tune applies detector-specific options after construction.
func (d *Detector) Tune(opts ...Option) *Detector {
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) Observe(pcm []byte) (vad.Boundary, bool) {
	level := rms(pcm)

	if d.inSpeech {
		if level < d.silenceThreshold {
			d.silenceCount++
			if d.silenceCount >= d.endFrames {
				d.inSpeech = false
				d.silenceCount = 0
				return vad.Boundary{Kind: vad.BoundaryEnd, FrameOffset: d.endFrames - 1}, true
			}
		} else {
			d.silenceCount = 0
		}
		return vad.Boundary{}, false
	}

	if level >= d.speechThreshold {
		d.speechCount++
		if d.speechCount >= d.startFrames {
			d.inSpeech = true
			d.speechCount = 0
			return vad.Boundary{Kind: vad.BoundaryStart, FrameOffset: d.startFrames - 1}, true
		}
	} else {
		d.speechCount = 0
	}
	return vad.Boundary{}, false
}

func (d *Detector) Reset() {
	d.inSpeech = false
	d.speechCount = 0
	d.silenceCount = 0
}

func rms(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}

	var sum float64
	samples := len(pcm) / 2
	for i := 0; i < samples*2; i += 2 {
		sample := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		normalized := float64(sample) / math.MaxInt16
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(samples))
}
