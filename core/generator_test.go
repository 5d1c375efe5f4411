package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voxloop/voxloop/core/llms"
)

func TestGenerateStreamsContentChunks(t *testing.T) {
	client := &scriptedLLM{
		streams: []scriptedStream{
			{chunks: []llms.StreamChunk{
				scriptedContentChunk{content: "Hello"},
				scriptedContentChunk{content: ", world."},
			}},
		},
	}
	g := newGenerator(client)

	chunks := []string{}
	prompt := "hi"
	response, err := g.generate(context.Background(), &prompt, nil, func(chunk string) {
		chunks = append(chunks, chunk)
	}, nil)
	if err != nil {
		t.Fatalf("expected generation to succeed, got %v", err)
	}

	if response == nil || response.Content != "Hello, world." {
		t.Fatalf("expected the full response content, got %+v", response)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 streamed chunks, got %d", len(chunks))
	}
}

func TestGenerateExecutesToolCallsAndRePrompts(t *testing.T) {
	client := &scriptedLLM{
		streams: []scriptedStream{
			{chunks: []llms.StreamChunk{
				scriptedToolCallChunk{call: llms.ToolCall{ID: "call-1", Name: "clock", Arguments: `{}`}},
			}},
			{chunks: []llms.StreamChunk{
				scriptedContentChunk{content: "It is noon."},
			}},
		},
	}

	g := newGenerator(client)
	executed := 0
	g.setTools(llms.NewTool("clock", "tells the time", func(struct{}) (string, error) {
		executed++
		return "12:00", nil
	}))

	prompt := "what time is it?"
	response, err := g.generate(context.Background(), &prompt, nil, nil, nil)
	if err != nil {
		t.Fatalf("expected generation with tools to succeed, got %v", err)
	}

	if executed != 1 {
		t.Fatalf("expected the tool to execute once, got %d", executed)
	}
	if client.prompts != 2 {
		t.Fatalf("expected a re-prompt after the tool call, got %d prompts", client.prompts)
	}
	if response.Content != "It is noon." {
		t.Fatalf("expected the post-tool response, got %q", response.Content)
	}
	if len(response.ToolCalls) != 1 || response.ToolCalls[0].Response != "12:00" {
		t.Fatalf("expected the executed tool call in the response, got %+v", response.ToolCalls)
	}
}

func TestGenerateFailsOnUnknownTool(t *testing.T) {
	client := &scriptedLLM{
		streams: []scriptedStream{
			{chunks: []llms.StreamChunk{
				scriptedToolCallChunk{call: llms.ToolCall{Name: "missing"}},
			}},
		},
	}

	g := newGenerator(client)
	_, err := g.generate(context.Background(), nil, nil, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected an unknown-tool error, got %v", err)
	}
}

func TestGenerateStopsEarlyWhenCancelled(t *testing.T) {
	client := &scriptedLLM{
		streams: []scriptedStream{
			{chunks: []llms.StreamChunk{
				scriptedContentChunk{content: "should not be seen"},
			}},
		},
	}

	g := newGenerator(client)
	response, err := g.generate(context.Background(), nil, nil, nil, func() bool { return true })
	if err != nil {
		t.Fatalf("expected cancellation not to error, got %v", err)
	}
	if response != nil {
		t.Fatalf("expected no response from a cancelled generation, got %+v", response)
	}
}

func TestGeneratePropagatesStreamErrors(t *testing.T) {
	streamErr := errors.New("upstream closed")
	client := &scriptedLLM{
		streams: []scriptedStream{{err: streamErr}},
	}

	g := newGenerator(client)
	_, err := g.generate(context.Background(), nil, nil, nil, nil)
	if err == nil || !errors.Is(err, streamErr) {
		t.Fatalf("expected the stream error to propagate, got %v", err)
	}
}

func TestUnconfiguredGeneratorReturnsNothing(t *testing.T) {
	g := newGenerator(nil)

	response, err := g.generate(context.Background(), nil, nil, nil, nil)
	if err != nil || response != nil {
		t.Fatalf("expected an unconfigured generator to return nothing, got %+v, %v", response, err)
	}
}

// scriptedLLM replays pre-programmed streams, one per prompt.
type scriptedLLM struct {
	streams []scriptedStream
	prompts int
}

func (c *scriptedLLM) PromptWithStream(_ context.Context, _ *string, _ ...llms.StreamingPromptOption) llms.Stream {
	index := c.prompts
	c.prompts++
	if index >= len(c.streams) {
		return scriptedStream{}
	}
	return c.streams[index]
}

type scriptedStream struct {
	chunks []llms.StreamChunk
	err    error
}

func (s scriptedStream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		if s.err != nil {
			yield(nil, s.err)
			return
		}
		for _, chunk := range s.chunks {
			if ctx.Err() != nil {
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

type scriptedContentChunk struct {
	content string
	finish  *string
}

func (c scriptedContentChunk) Content() string       { return c.content }
func (c scriptedContentChunk) FinishReason() *string { return c.finish }

type scriptedToolCallChunk struct {
	call   llms.ToolCall
	finish *string
}

func (c scriptedToolCallChunk) ToolCall() llms.ToolCall { return c.call }
func (c scriptedToolCallChunk) FinishReason() *string   { return c.finish }
