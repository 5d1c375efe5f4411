package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxloop/voxloop/core/llms"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// generator wraps the configured response generator with the session's
// instructions and tool list and runs the generate/execute-tools loop.
type generator struct {
	client       ResponseGenerator
	instructions string
	tools        []llms.Tool
}

func newGenerator(client ResponseGenerator) *generator {
	return &generator{client: client}
}

func (g *generator) isConfigured() bool {
	return g != nil && g.client != nil
}

func (g *generator) setTools(tools ...llms.Tool) {
	if g == nil {
		return
	}
	g.tools = append([]llms.Tool(nil), tools...)
}

func (g *generator) setInstructions(instructions string) {
	if g != nil {
		g.instructions = instructions
	}
}

// generate streams one model response, feeding content chunks to onChunk as
// they arrive. Tool calls surfaced by the stream are executed and the model
// is re-prompted with their results until it answers with plain content.
// A true cancelled() check ends generation early with a nil response.
func (g *generator) generate(
	ctx context.Context,
	prompt *string,
	history []llms.Utterance,
	onChunk func(string),
	cancelled func() bool,
) (*llms.Response, error) {
	if !g.isConfigured() {
		return nil, nil
	}

	span := trace.SpanFromContext(ctx)

	toolCalls := []llms.ToolCall{}
	for {
		stream := g.client.PromptWithStream(ctx, prompt,
			llms.WithInstructions(g.instructions),
			llms.WithHistory(history),
			llms.WithTools(g.tools...),
		)

		var message strings.Builder
		pendingToolCalls := []llms.ToolCall{}
		for chunk, err := range stream.Chunks(ctx) {
			if err != nil {
				err = fmt.Errorf("failed to stream response: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}

			if cancelled != nil && cancelled() {
				return nil, nil
			}

			switch chunk := chunk.(type) {
			case llms.StreamContentChunk:
				message.WriteString(chunk.Content())
				if onChunk != nil {
					onChunk(chunk.Content())
				}

			case llms.StreamToolCallChunk:
				pendingToolCalls = append(pendingToolCalls, chunk.ToolCall())
			}
		}

		for _, toolCall := range pendingToolCalls {
			response, err := g.callTool(ctx, toolCall)
			if err != nil {
				err = fmt.Errorf("failed to call tool %q: %w", toolCall.Name, err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			toolCall.Response = response
			toolCalls = append(toolCalls, toolCall)
			history = append(history, llms.Utterance{
				Role:    llms.RoleAssistant,
				Content: fmt.Sprintf("[called %s(%s) -> %s]", toolCall.Name, toolCall.Arguments, response),
			})
		}

		if len(pendingToolCalls) == 0 {
			return &llms.Response{
				Content:   message.String(),
				ToolCalls: toolCalls,
			}, nil
		}
	}
}

func (g *generator) callTool(ctx context.Context, toolCall llms.ToolCall) (string, error) {
	_, span := tracer.Start(ctx, "call tool")
	defer span.End()

	for _, tool := range g.tools {
		if tool.Name == toolCall.Name {
			return tool.Execute(toolCall.Arguments)
		}
	}
	return "", fmt.Errorf("tool %q is not available", toolCall.Name)
}
