package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voxloop/voxloop/core/llms"
	"github.com/voxloop/voxloop/internal/utils"
	"google.golang.org/genai"
)

type Stream struct {
	apiKey string

	model        string
	instructions string
	history      []llms.Utterance
	tools        []llms.Tool
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "gemini streaming prompt")
		defer span.End()

		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: s.apiKey})
		if err != nil {
			yield(nil, fmt.Errorf("error creating client: %w", err))
			return
		}

		cfg := &genai.GenerateContentConfig{}
		if s.instructions != "" {
			cfg.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{genai.NewPartFromText(s.instructions)},
			}
		}
		if len(s.tools) > 0 {
			cfg.Tools = toGeminiTools(s.tools)
		}

		contents := toGeminiContents(s.history)
		if len(contents) == 0 {
			yield(nil, fmt.Errorf("no contents to prompt with"))
			return
		}

		for chunk, err := range client.Models.GenerateContentStream(ctx, s.model, contents, cfg) {
			if err != nil {
				yield(nil, fmt.Errorf("error streaming response: %w", err))
				return
			}
			if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
				continue
			}

			candidate := chunk.Candidates[0]
			for _, part := range candidate.Content.Parts {
				switch {
				case part.Text != "":
					if !yield(contentChunk{content: part.Text}, nil) {
						return
					}
				case part.FunctionCall != nil:
					arguments, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						if !yield(nil, fmt.Errorf("error marshalling tool call arguments: %w", err)) {
							return
						}
						continue
					}
					if !yield(toolCallChunk{
						toolCall: llms.ToolCall{
							ID:        part.FunctionCall.Name,
							Name:      part.FunctionCall.Name,
							Arguments: string(arguments),
						},
					}, nil) {
						return
					}
				}
			}

			switch candidate.FinishReason {
			case genai.FinishReasonUnspecified:
			case genai.FinishReasonStop:
				yield(contentChunk{finishReason: utils.Ptr("stop")}, nil)
				return
			case genai.FinishReasonMaxTokens:
				yield(contentChunk{finishReason: utils.Ptr("length")}, nil)
				return
			default:
				yield(nil, fmt.Errorf("unexpected finish reason: %s", candidate.FinishReason))
				return
			}
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
