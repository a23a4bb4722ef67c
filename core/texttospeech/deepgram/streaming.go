package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
)

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)

func speakMsg(text string) websocketMessage {
	return websocketMessage{Type: "Speak", Text: text}
}

// Synthesize speaks text and returns the raw audio in the client's encoding.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "deepgram speak")
	defer span.End()

	conn, err := c.connectWebsocket(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for _, msg := range []websocketMessage{speakMsg(text), flushMsg} {
		if err := conn.WriteJSON(msg); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to send %s message: %w", msg.Type, err)
		}
	}

	var speech []byte
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			span.RecordError(err)
			return nil, fmt.Errorf("speech stream ended before flush: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			speech = append(speech, msg...)
		case websocket.TextMessage:
			var parsedMsg struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				if err := conn.WriteJSON(closeMsg); err != nil {
					logger.DebugContext(ctx, "failed to close deepgram stream", "error", err)
				}
				return speech, nil
			case "Warning", "Error":
				logger.WarnContext(ctx, "deepgram speak warning", "type", parsedMsg.Type, "description", parsedMsg.Description)
			}
		}
	}
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context) (*websocket.Conn, error) {
	encodingInfo := c.options.EncodingInfo

	urlValues := url.Values{}
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(c.voice))
	urlValues.Set("container", "none")

	endpoint := c.endpoint
	endpoint.RawQuery = urlValues.Encode()

	conn, _, err := c.dialer.DialContext(ctx, endpoint.String(), http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}
