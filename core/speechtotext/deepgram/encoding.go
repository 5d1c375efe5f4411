package deepgram

import (
	"fmt"

	"github.com/voxloop/voxloop/core/audio"
)

// convertEncoding validates that the encoding is one Deepgram's listen API
// accepts and fills in defaults for zero values.
func convertEncoding(encodingInfo audio.EncodingInfo) (audio.EncodingInfo, error) {
	if encodingInfo.IsZero() {
		return audio.GetDefaultEncodingInfo(), nil
	}

	switch encodingInfo.Format {
	case audio.EncodingLinear16, audio.EncodingMulaw, audio.EncodingALaw:
		return encodingInfo, nil
	}

	return audio.EncodingInfo{}, fmt.Errorf("unsupported encoding format: %s", encodingInfo.Format.Name())
}
