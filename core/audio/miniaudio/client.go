// Package miniaudio captures microphone audio and plays synthesized speech
// through the default devices using malgo.
package miniaudio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/voxloop/voxloop/core/audio"
)

// Client is a frame source over the default capture device and a marking
// sink over the default playback device.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient

	encodingInfo audio.EncodingInfo

	seq       atomic.Uint64
	closeOnce sync.Once
	onEnd     func()
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{
		audioContext: audioCtx,
		encodingInfo: audio.EncodingInfo{
			SampleRate: audio.DefaultSampleRate,
			Format:     audio.EncodingLinear16,
		},
	}

	if err := client.playbackClient.Init(audioCtx, client.encodingInfo); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx, client.encodingInfo); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

// Start begins delivering captured frames. The capture device never ends the
// stream on its own; onEnd fires when the client is closed.
func (c *Client) Start(_ context.Context, onFrame func(frame audio.Frame), onEnd func()) error {
	c.onEnd = onEnd
	return c.captureClient.Start(func(pcm []byte) {
		if onFrame == nil {
			return
		}
		onFrame(audio.Frame{
			Seq:       c.seq.Add(1) - 1,
			Timestamp: time.Now(),
			PCM:       append([]byte(nil), pcm...),
		})
	})
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		_ = c.captureClient.Uninit()
		_ = c.playbackClient.Uninit()
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		if c.onEnd != nil {
			c.onEnd()
		}
	})
	return nil
}

func (c *Client) Clear() error {
	c.playbackClient.ClearBuffer()
	return nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encodingInfo
}
