// Package deepgram transcribes utterances through the Deepgram live
// transcription websocket API.
package deepgram

import (
	"fmt"
	"os"
)

type TranscriptionClient struct {
	apiKey   string
	model    string
	language string
}

type ClientOption func(*TranscriptionClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) { c.language = language }
}

func NewClient(opts ...ClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{
		model:    "nova-3",
		language: "en-US",
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
