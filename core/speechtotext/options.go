package speechtotext

import "github.com/voxloop/voxloop/core/audio"

type TranscriptionOptions struct {
	// InterimTranscriptCallback is called with the current interim transcript
	// of the in-flight utterance. Later calls may revise earlier ones.
	InterimTranscriptCallback func(transcript string)
	// TranscriptCallback is called exactly once with the final transcript,
	// after Finish and before the transcription releases its resources. An
	// empty transcript means the audio was unintelligible.
	TranscriptCallback func(transcript string)
	// ErrorCallback is called when the transcription fails. Cancellation does
	// not trigger it.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithInterimTranscriptCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptCallback = callback
	}
}

func WithTranscriptCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptCallback = callback
	}
}

func WithErrorCallback(callback func(error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ErrorCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}

// Transcription is one in-flight utterance transcription.
type Transcription interface {
	// SendAudio streams utterance audio in capture order.
	//
	// SendAudio will error if Finish or Cancel has been called.
	SendAudio(audio []byte) error
	// Finish signals that no more audio will be sent. The final transcript
	// callback fires once the remaining audio has been processed.
	//
	// Repeated calls to Finish are ignored.
	Finish() error
	// Cancel abandons the transcription and releases its resources promptly.
	// No callbacks fire after Cancel returns.
	//
	// Repeated calls to Cancel are ignored.
	Cancel() error
}
