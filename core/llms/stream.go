package llms

import "context"

// Stream is a lazy, cancellable sequence of model output chunks. Iteration
// stops when the passed context is cancelled; no chunks are produced after
// that.
type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

type StreamChunk interface {
	FinishReason() *string
}

type StreamContentChunk interface {
	StreamChunk
	Content() string
}

type StreamToolCallChunk interface {
	StreamChunk
	ToolCall() ToolCall
}
