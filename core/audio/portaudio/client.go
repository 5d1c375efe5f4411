// Package portaudio captures microphone audio and plays synthesized speech
// through the default PortAudio stream.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/voxloop/voxloop/core/audio"
)

// Client is a frame source and sink over one full-duplex PortAudio stream.
// Playback is synchronous, so marks confirm once the preceding audio has
// been written to the device.
type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	audioMu      sync.Mutex
	pendingAudio []byte

	in  []int16
	out []int16

	seq       atomic.Uint64
	closeOnce sync.Once
	onEnd     func()
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

// Start reads capture buffers on a dedicated goroutine until the context
// ends or the client is closed.
func (c *Client) Start(ctx context.Context, onFrame func(frame audio.Frame), onEnd func()) error {
	c.onEnd = onEnd

	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if err := c.stream.Read(); err != nil {
				continue
			}

			audioBuffer := bytes.Buffer{}
			if err := binary.Write(&audioBuffer, binary.LittleEndian, c.in); err != nil {
				continue
			}
			if onFrame != nil {
				onFrame(audio.Frame{
					Seq:       c.seq.Add(1) - 1,
					Timestamp: time.Now(),
					PCM:       audioBuffer.Bytes(),
				})
			}
		}
	}()

	return nil
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stream.Close()
		_ = portaudio.Terminate()
		if c.onEnd != nil {
			c.onEnd()
		}
	})
	return nil
}

// SendAudio writes whole device buffers to the stream and holds back the
// remainder until enough audio arrives to fill the next one.
func (c *Client) SendAudio(pcm []byte) error {
	bufferSize := c.bufferSize * 2

	c.audioMu.Lock()
	defer c.audioMu.Unlock()

	pending := append(c.pendingAudio, pcm...)
	for len(pending) >= bufferSize {
		if err := binary.Read(bytes.NewBuffer(pending[:bufferSize]), binary.LittleEndian, c.out); err != nil {
			return fmt.Errorf("failed to stage playback audio: %w", err)
		}
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write playback audio: %w", err)
		}
		pending = pending[bufferSize:]
	}
	c.pendingAudio = append(c.pendingAudio[:0], pending...)

	return nil
}

func (c *Client) Clear() error {
	c.audioMu.Lock()
	c.pendingAudio = c.pendingAudio[:0]
	c.audioMu.Unlock()
	return nil
}

// Mark flushes the held-back remainder padded with silence and confirms the
// mark, since writes block until the device accepted the audio.
func (c *Client) Mark(id string, onPlayed func(string)) error {
	bufferSize := c.bufferSize * 2

	c.audioMu.Lock()
	if len(c.pendingAudio) > 0 {
		padded := make([]byte, bufferSize)
		copy(padded, c.pendingAudio)
		c.pendingAudio = c.pendingAudio[:0]
		if err := binary.Read(bytes.NewBuffer(padded), binary.LittleEndian, c.out); err == nil {
			_ = c.stream.Write()
		}
	}
	c.audioMu.Unlock()

	if onPlayed != nil {
		onPlayed(id)
	}
	return nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
