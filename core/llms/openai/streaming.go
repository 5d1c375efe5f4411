package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/voxloop/voxloop/core/llms"
	"github.com/voxloop/voxloop/internal/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	url = "https://api.openai.com/v1/responses"

	eventPrefix = "event:"
	chunkPrefix = "data:"
)

type streamingEventType string

const (
	streamingEventResponseOutputTextDelta streamingEventType = "response.output_text.delta"
	streamingEventResponseOutputItemDone  streamingEventType = "response.output_item.done"
	streamingEventResponseCompleted       streamingEventType = "response.completed"
	streamingEventResponseFailed          streamingEventType = "response.failed"
)

type requestBody struct {
	Model      string          `json:"model"`
	Input      []openAIMessage `json:"input"`
	Stream     bool            `json:"stream"`
	Tools      []openAITool    `json:"tools,omitempty"`
	ToolChoice *string         `json:"tool_choice,omitempty"`
}

type streamingBodyResponseTextDelta struct {
	Delta string `json:"delta"`
}

type streamingBodyOutputItemDone struct {
	Item struct {
		Type      string `json:"type"`
		CallID    string `json:"call_id"`
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"item"`
}

type Stream struct {
	apiKey string

	model    string
	tools    []openAITool
	messages []openAIMessage
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "openai streaming prompt")
		defer span.End()

		var toolChoice *string
		if s.tools != nil {
			toolChoice = utils.Ptr("auto")
		}

		reqBody := requestBody{
			Model:      s.model,
			Input:      s.messages,
			Stream:     true,
			Tools:      s.tools,
			ToolChoice: toolChoice,
		}

		requestBodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			yield(nil, fmt.Errorf("error marshalling JSON: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			yield(nil, fmt.Errorf("error creating HTTP request: %w", err))
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
		resp, err := client.Do(req)
		if err != nil {
			yield(nil, fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			yield(nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			chunk := strings.TrimSpace(scanner.Text())

			if len(chunk) == 0 || !strings.HasPrefix(chunk, eventPrefix) {
				continue
			}

			event := strings.TrimSpace(strings.TrimPrefix(chunk, eventPrefix))

			scanner.Scan()
			chunk = strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))

			switch streamingEventType(event) {
			case streamingEventResponseOutputTextDelta:
				var responseBody streamingBodyResponseTextDelta
				if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
					if !yield(nil, fmt.Errorf("error unmarshalling JSON: %w", err)) {
						return
					}
					continue
				}
				if !yield(contentChunk{content: responseBody.Delta}, nil) {
					return
				}

			case streamingEventResponseOutputItemDone:
				var responseBody streamingBodyOutputItemDone
				if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
					if !yield(nil, fmt.Errorf("error unmarshalling JSON: %w", err)) {
						return
					}
					continue
				}
				if responseBody.Item.Type != "function_call" {
					continue
				}
				if !yield(toolCallChunk{
					toolCall: llms.ToolCall{
						ID:        responseBody.Item.CallID,
						Name:      responseBody.Item.Name,
						Arguments: responseBody.Item.Arguments,
					},
				}, nil) {
					return
				}

			case streamingEventResponseCompleted:
				if !yield(contentChunk{finishReason: utils.Ptr("stop")}, nil) {
					return
				}
				return

			case streamingEventResponseFailed:
				yield(nil, fmt.Errorf("response generation failed"))
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(nil, fmt.Errorf("error reading stream: %w", err))
		}
	}
}

type contentChunk struct {
	content      string
	finishReason *string
}

func (c contentChunk) Content() string       { return c.content }
func (c contentChunk) FinishReason() *string { return c.finishReason }

type toolCallChunk struct {
	toolCall     llms.ToolCall
	finishReason *string
}

func (c toolCallChunk) ToolCall() llms.ToolCall { return c.toolCall }
func (c toolCallChunk) FinishReason() *string   { return c.finishReason }
