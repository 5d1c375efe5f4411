// Package openai generates responses through the OpenAI Responses API with
// server-sent event streaming.
package openai

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
	client := &Client{model: "gpt-4o-mini"}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("OPENAI_API_KEY")
		if !ok {
			return nil, fmt.Errorf("openai api key not found")
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

	messages := toOpenAIMessages(options.Instructions, options.History)
	if prompt != nil {
		messages = append(messages, openAIMessage{
			Type:    messageTypeMessage,
			Role:    messageRoleUser,
			Content: *prompt,
		})
	}

	var tools []openAITool
	if options.Tools != nil {
		tools = toOpenAITools(options.Tools)
	}

	return &Stream{
		apiKey:   c.apiKey,
		model:    c.model,
		tools:    tools,
		messages: messages,
	}
}
