package deepgram

import (
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultModel    = "nova-3"
	DefaultLanguage = "tr"
)

type TranscriptionClient struct {
	apiKey   string
	endpoint url.URL
	model    string
	dialer   *websocket.Dialer

	conn      *websocket.Conn
	connMu    sync.Mutex
	lastMsgTs time.Time

	accumulatedTranscript string
	unendedSegment        bool
}

type ClientOption func(*TranscriptionClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

// WithEndpoint overrides the listen endpoint, mainly for tests.
func WithEndpoint(endpoint url.URL) ClientOption {
	return func(c *TranscriptionClient) { c.endpoint = endpoint }
}

func NewTranscriptionClient(opts ...ClientOption) *TranscriptionClient {
	client := &TranscriptionClient{
		apiKey:   os.Getenv("DEEPGRAM_API_KEY"),
		endpoint: url.URL{Scheme: "wss", Host: "api.deepgram.com", Path: "/v1/listen"},
		model:    DefaultModel,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}
