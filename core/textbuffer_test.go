package pipeline

import (
	"testing"
	"time"
)

func TestTextBufferDrainsChunksInOrder(t *testing.T) {
	b := newTextBuffer()
	b.AddChunk("Hello, ")
	b.AddChunk("world")
	b.AddChunk("!")
	b.TextComplete()

	got := []string{}
	for chunk := range b.Chunks {
		got = append(got, chunk)
	}

	want := []string{"Hello, ", "world", "!"}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected chunk %d to be %q, got %q", i, want[i], got[i])
		}
	}
}

func TestTextBufferIteratorBlocksUntilComplete(t *testing.T) {
	b := newTextBuffer()
	b.AddChunk("partial")

	drained := make(chan struct{})
	go func() {
		for range b.Chunks {
		}
		close(drained)
	}()

	select {
	case <-drained:
		t.Fatalf("expected iterator to block while the text is incomplete")
	case <-time.After(50 * time.Millisecond):
	}

	b.TextComplete()

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for iterator to finish after completion")
	}
}

func TestTextBufferClearUnblocksIterator(t *testing.T) {
	b := newTextBuffer()

	drained := make(chan struct{})
	go func() {
		for range b.Chunks {
		}
		close(drained)
	}()

	b.Clear()

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for cleared iterator to return")
	}
}

func TestTextBufferStringJoinsEverything(t *testing.T) {
	b := newTextBuffer()
	b.AddChunk("one ")
	b.AddChunk("two")

	if got := b.String(); got != "one two" {
		t.Fatalf("expected joined text %q, got %q", "one two", got)
	}
}
