// Package gemini generates responses through the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"os"

	"github.com/voxloop/voxloop/core/llms"
)

type Client struct {
	apiKey       string
	model        string
	systemPrompt string
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithSystemPrompt(systemPrompt string) ClientOption {
	return func(c *Client) { c.systemPrompt = systemPrompt }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{model: "gemini-2.0-flash"}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("GEMINI_API_KEY")
		if !ok {
			return nil, fmt.Errorf("gemini api key not found")
		}
		client.apiKey = apiKey
	}

	return client, nil
}

func (c *Client) PromptWithStream(_ context.Context, prompt *string, opts ...llms.StreamingPromptOption) llms.Stream {
	options := llms.StreamingPromptOptions{
		GeneralPromptOptions: llms.GeneralPromptOptions{
			BaseOptions: llms.BaseOptions{Instructions: c.systemPrompt},
		},
	}
	for _, opt := range opts {
		opt.ApplyToStreaming(&options)
	}

	history := options.History
	if prompt != nil {
		history = append(history, llms.Utterance{Role: llms.RoleUser, Content: *prompt})
	}

	return &Stream{
		apiKey:       c.apiKey,
		model:        c.model,
		instructions: options.Instructions,
		history:      history,
		tools:        options.Tools,
	}
}
