package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/voxloop/voxloop/core/audio"
	"github.com/voxloop/voxloop/core/speechtotext"
)

// NewTranscription opens a live transcription stream for one utterance.
func (c *TranscriptionClient) NewTranscription(ctx context.Context, opts ...speechtotext.TranscriptionOption) (speechtotext.Transcription, error) {
	options := speechtotext.TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := c.connectWebsocket(ctx, connectionOptions{
		sampleRate:     encoding.SampleRate,
		encoding:       encoding.Format.Name(),
		interimResults: options.InterimTranscriptCallback != nil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}

	transcription := &utteranceTranscription{
		conn:    conn,
		options: options,
	}
	go transcription.readAndProcessMessages()

	return transcription, nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string

	interimResults bool
}

func (c *TranscriptionClient) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	listenUrl, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.model)
	queryParams.Set("language", c.language)
	queryParams.Set("smart_format", "true")
	if options.interimResults {
		queryParams.Set("interim_results", "true")
	}

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenUrl.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

// utteranceTranscription streams one utterance's audio to Deepgram and
// collects finalized transcript pieces until the stream is closed.
type utteranceTranscription struct {
	conn    *websocket.Conn
	connMu  sync.Mutex
	options speechtotext.TranscriptionOptions

	stateMu   sync.Mutex
	finished  bool
	cancelled bool
	delivered bool

	accumulatedTranscript string
}

func (t *utteranceTranscription) SendAudio(audio []byte) error {
	t.stateMu.Lock()
	if t.finished || t.cancelled {
		t.stateMu.Unlock()
		return fmt.Errorf("transcription already closed")
	}
	t.stateMu.Unlock()

	t.connMu.Lock()
	defer t.connMu.Unlock()

	if err := t.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (t *utteranceTranscription) Finish() error {
	t.stateMu.Lock()
	if t.finished || t.cancelled {
		t.stateMu.Unlock()
		return nil
	}
	t.finished = true
	t.stateMu.Unlock()

	t.connMu.Lock()
	defer t.connMu.Unlock()

	if err := t.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream through websocket: %w", err)
	}
	return nil
}

func (t *utteranceTranscription) Cancel() error {
	t.stateMu.Lock()
	if t.cancelled {
		t.stateMu.Unlock()
		return nil
	}
	t.cancelled = true
	t.delivered = true
	t.stateMu.Unlock()

	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.conn.Close()
}

func (t *utteranceTranscription) readAndProcessMessages() {
	for {
		msgType, msg, err := t.conn.ReadMessage()
		if err != nil {
			t.onStreamEnded(err)
			t.conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			t.processMessage(msg)
		}
	}
}

func (t *utteranceTranscription) processMessage(msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("Failed to unmarshal deepgram message", "error", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}

		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if len(transcript) == 0 {
			return
		}

		if msgResp.IsFinal {
			t.accumulatedTranscript = strings.TrimSpace(t.accumulatedTranscript + " " + transcript)
			t.invokeInterim(t.accumulatedTranscript)
		} else {
			t.invokeInterim(strings.TrimSpace(t.accumulatedTranscript + " " + transcript))
		}

	case api.TypeMetadataResponse:
		// Deepgram sends metadata after CloseStream once all audio has been
		// processed; the transcript is complete at that point.
		t.deliverFinal()
	}
}

func (t *utteranceTranscription) onStreamEnded(err error) {
	t.stateMu.Lock()
	finished := t.finished
	cancelled := t.cancelled
	t.stateMu.Unlock()

	if cancelled {
		return
	}

	if finished {
		t.deliverFinal()
		return
	}

	if t.options.ErrorCallback != nil {
		t.options.ErrorCallback(fmt.Errorf("deepgram stream ended unexpectedly: %w", err))
	}
}

func (t *utteranceTranscription) deliverFinal() {
	t.stateMu.Lock()
	if t.delivered {
		t.stateMu.Unlock()
		return
	}
	t.delivered = true
	t.stateMu.Unlock()

	if t.options.TranscriptCallback != nil {
		t.options.TranscriptCallback(strings.TrimSpace(t.accumulatedTranscript))
	}
}

func (t *utteranceTranscription) invokeInterim(transcript string) {
	if t.options.InterimTranscriptCallback != nil {
		t.options.InterimTranscriptCallback(transcript)
	}
}
