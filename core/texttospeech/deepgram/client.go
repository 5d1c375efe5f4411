// Package deepgram synthesizes speech through the Deepgram speak-streaming
// websocket API.
package deepgram

import (
	"fmt"
	"os"

	"github.com/voxloop/voxloop/core/audio"
)

type deepgramVoice string

const (
	VoiceAuraAsteria deepgramVoice = "aura-asteria-en"
	VoiceAuraLuna    deepgramVoice = "aura-luna-en"
	VoiceAuraOrion   deepgramVoice = "aura-orion-en"
)

type TextToSpeechClient struct {
	apiKey       string
	voice        deepgramVoice
	encodingInfo audio.EncodingInfo
}

type ClientOption func(*TextToSpeechClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

func WithVoice(voice deepgramVoice) ClientOption {
	return func(c *TextToSpeechClient) { c.voice = voice }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) ClientOption {
	return func(c *TextToSpeechClient) {
		if !encodingInfo.IsZero() {
			c.encodingInfo = encodingInfo
		}
	}
}

func NewClient(opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		voice:        VoiceAuraAsteria,
		encodingInfo: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		client.apiKey = apiKey
	}

	return client, nil
}
