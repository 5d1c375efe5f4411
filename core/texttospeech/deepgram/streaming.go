package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/voxloop/voxloop/core/audio"
	"github.com/voxloop/voxloop/core/texttospeech"
)

type streamingRequest struct {
	ws *websocket.Conn
	mu sync.Mutex

	textBuffer   []string
	textBufferMu sync.Mutex

	options texttospeech.TextToSpeechOptions

	textComplete bool
	cancelled    bool
	closed       bool

	report texttospeech.SpeechEndedReport
}

func (c *TextToSpeechClient) NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	req := &streamingRequest{
		options: texttospeech.TextToSpeechOptions{
			SpeechAudioCallback: func([]byte) {},
			SpeechMarkCallback:  func(string) {},
			SpeechEndedCallback: func(texttospeech.SpeechEndedReport) {},
			ErrorCallback:       func(error) {},
			EncodingInfo:        c.encodingInfo,
		},
	}

	for _, opt := range opts {
		opt(&req.options)
	}

	var err error
	if req.ws, err = connectWebsocket(ctx, c.apiKey, c.voice, req.options.EncodingInfo); err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}

	go req.processIncomingMessages()

	return req, nil
}

func connectWebsocket(ctx context.Context, apiKey string, voice deepgramVoice, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	urlValues := url.Values{}
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")

	conn, _, err := websocket.DefaultDialer.DialContext(
		ctx,
		(&url.URL{
			Scheme: "wss",
			Host:   "api.deepgram.com", Path: "/v1/speak",
			RawQuery: urlValues.Encode(),
		}).String(),
		http.Header{"Authorization": {"token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (r *streamingRequest) processIncomingMessages() {
	for {
		msgType, msg, err := r.ws.ReadMessage()
		if err != nil {
			if r.isClosed() || r.isCancelled() {
				return
			}
			if err.Error() != "websocket: close 1000 (normal)" {
				logger.Warn("Websocket read error", "error", err)
				r.options.ErrorCallback(fmt.Errorf("deepgram speak stream failed: %w", err))
			}
			_ = r.Close()
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if r.isCancelled() {
				continue
			}
			r.options.SpeechAudioCallback(msg)
		case websocket.TextMessage:
			var parsedMsg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				r.onFlushed()
			}
		}
	}
}

// onFlushed advances the mark queue. Deepgram sometimes drops text sent
// right after a flush, so buffered text after a mark is only sent once the
// flush confirmation arrives.
func (r *streamingRequest) onFlushed() {
	r.textBufferMu.Lock()
	defer r.textBufferMu.Unlock()

	if len(r.textBuffer) > 0 {
		r.options.SpeechMarkCallback(r.textBuffer[0])
		r.textBuffer = r.textBuffer[1:]
	}

	if len(r.textBuffer) == 0 && r.textComplete {
		r.options.SpeechEndedCallback(r.report)
		_ = r.Close()
		return
	}

	if len(r.textBuffer) > 0 {
		if err := r.sendWebsocketMessage(sendTextMsg(r.textBuffer[0])); err != nil {
			logger.Warn("Failed to send deepgram text", "error", err)
		}
	}
	if len(r.textBuffer) > 1 || (len(r.textBuffer) == 1 && r.textComplete) {
		if err := r.sendWebsocketMessage(flushMsg); err != nil {
			logger.Warn("Failed to flush deepgram buffer", "error", err)
		}
	}
}

func (r *streamingRequest) SendText(text string) error {
	if r.closed {
		return fmt.Errorf("streaming request closed")
	} else if r.cancelled {
		return fmt.Errorf("streaming request cancelled")
	} else if r.textComplete {
		return fmt.Errorf("streaming request text already completed")
	}

	r.textBufferMu.Lock()
	defer r.textBufferMu.Unlock()

	r.report.CharactersSynthesized += len(text)

	if len(r.textBuffer) == 0 {
		r.textBuffer = append(r.textBuffer, "")
	}

	if len(r.textBuffer) == 1 {
		if err := r.sendWebsocketMessage(sendTextMsg(text)); err != nil {
			return fmt.Errorf("failed to send websocket send text message: %w", err)
		}
	}
	r.textBuffer[len(r.textBuffer)-1] += text
	return nil
}

func (r *streamingRequest) Mark() error {
	if r.closed {
		return fmt.Errorf("streaming request closed")
	} else if r.cancelled {
		return fmt.Errorf("streaming request cancelled")
	} else if r.textComplete {
		return fmt.Errorf("streaming request text already completed")
	}

	r.textBufferMu.Lock()
	defer r.textBufferMu.Unlock()

	if len(r.textBuffer) == 1 {
		if err := r.sendWebsocketMessage(flushMsg); err != nil {
			return fmt.Errorf("failed to send websocket flush message: %w", err)
		}
	}

	r.textBuffer = append(r.textBuffer, "")

	return nil
}

func (r *streamingRequest) EndOfText() error {
	if r.closed {
		return fmt.Errorf("streaming request closed")
	} else if r.cancelled {
		return fmt.Errorf("streaming request cancelled")
	}
	r.textBufferMu.Lock()
	defer r.textBufferMu.Unlock()

	if r.textComplete {
		return nil
	}

	r.textComplete = true
	if len(r.textBuffer) == 0 {
		r.options.SpeechEndedCallback(r.report)
		_ = r.Close()
	} else if len(r.textBuffer) == 1 && r.textBuffer[0] == "" {
		r.textBuffer = r.textBuffer[1:]
		r.options.SpeechEndedCallback(r.report)
		_ = r.Close()
	} else if len(r.textBuffer) == 1 {
		if err := r.sendWebsocketMessage(flushMsg); err != nil {
			return fmt.Errorf("failed to send websocket flush message: %w", err)
		}
	}

	return nil
}

func (r *streamingRequest) Cancel() error {
	if r.closed {
		return nil
	} else if r.cancelled {
		return nil
	}

	r.cancelled = true
	if err := r.sendWebsocketMessage(clearMsg); err != nil {
		_ = r.Close()
		return fmt.Errorf("failed to send websocket clear message: %w", err)
	}

	return r.Close()
}

func (r *streamingRequest) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true
	if err := r.sendCloseMessage(); err != nil {
		if aggressiveCloseErr := r.ws.Close(); aggressiveCloseErr != nil {
			return fmt.Errorf("failed to close websocket: %w", errors.Join(err, aggressiveCloseErr))
		}
	}
	return nil
}

func (r *streamingRequest) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *streamingRequest) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var (
	sendTextMsg = func(text string) speakMessage {
		return speakMessage{Type: "Speak", Text: text}
	}
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)

func (r *streamingRequest) sendWebsocketMessage(msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ws == nil {
		return fmt.Errorf("websocket connection closed")
	}

	if err := r.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (r *streamingRequest) sendCloseMessage() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ws == nil {
		return fmt.Errorf("websocket connection closed")
	}

	if err := r.ws.WriteJSON(closeMsg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}
