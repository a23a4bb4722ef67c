package deepgram

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-prompter/core/texttospeech"
)

// SegmentSource resolves a segment index to the text that should be spoken.
type SegmentSource interface {
	SegmentText(index int) (string, bool)
}

// TextToSpeechClient synthesizes script segments through Deepgram's speak
// websocket. It is used when the backend cannot render prompt audio.
type TextToSpeechClient struct {
	segments SegmentSource
	voice    deepgramVoice
	apiKey   string
	endpoint url.URL
	dialer   *websocket.Dialer
	options  texttospeech.SpeechOptions
}

type ClientOption func(*TextToSpeechClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

// WithEndpoint overrides the speak endpoint, mainly for tests.
func WithEndpoint(endpoint url.URL) ClientOption {
	return func(c *TextToSpeechClient) { c.endpoint = endpoint }
}

func WithSpeechOptions(opts ...texttospeech.SpeechOption) ClientOption {
	return func(c *TextToSpeechClient) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewTextToSpeechClient(segments SegmentSource, voice deepgramVoice, opts ...ClientOption) (*TextToSpeechClient, error) {
	if voice == "" {
		voice = defaultVoice
	}
	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice %q", voice)
	}

	client := &TextToSpeechClient{
		segments: segments,
		voice:    voice,
		apiKey:   os.Getenv("DEEPGRAM_API_KEY"),
		endpoint: url.URL{Scheme: "wss", Host: "api.deepgram.com", Path: "/v1/speak"},
		dialer:   websocket.DefaultDialer,
		options:  texttospeech.NewSpeechOptions(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	return client, nil
}

func (c *TextToSpeechClient) SetVoice(voice deepgramVoice) {
	c.voice = voice
}

// Fetch synthesizes the text of the segment at index.
func (c *TextToSpeechClient) Fetch(ctx context.Context, index int) ([]byte, error) {
	text, ok := c.segments.SegmentText(index)
	if !ok {
		return nil, fmt.Errorf("segment %d out of range", index)
	}
	return c.Synthesize(ctx, text)
}
