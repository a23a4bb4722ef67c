package alignment

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultURL                  = "ws://127.0.0.1:8000/ws"
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = time.Second
	DefaultReconnectMaxDelay    = 5 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
)

type ChannelOption func(*Channel)

func WithSentenceMode(enabled bool) ChannelOption {
	return func(c *Channel) {
		c.sentenceMode = enabled
	}
}

// WithEventHandler sets the callback for inbound events. It is called from
// the channel's read goroutine in the order events arrive.
func WithEventHandler(handler func(Event)) ChannelOption {
	return func(c *Channel) {
		c.onEvent = handler
	}
}

func WithStateHandler(handler func(Status)) ChannelOption {
	return func(c *Channel) {
		c.onStateChange = handler
	}
}

// WithVADForwarding controls whether SendVAD writes anything. Deployments
// whose alignment service ignores voice activity can turn it off.
func WithVADForwarding(enabled bool) ChannelOption {
	return func(c *Channel) {
		c.forwardVAD = enabled
	}
}

// WithReconnect configures bounded reconnection. The n-th attempt waits
// min(n*base, maxDelay).
func WithReconnect(maxAttempts int, base, maxDelay time.Duration) ChannelOption {
	return func(c *Channel) {
		c.reconnect = maxAttempts > 0
		c.maxAttempts = maxAttempts
		c.baseDelay = base
		c.maxDelay = maxDelay
	}
}

// WithoutReconnect surfaces the first unexpected close as ReasonDisconnected.
func WithoutReconnect() ChannelOption {
	return func(c *Channel) {
		c.reconnect = false
	}
}

func WithDialer(dialer *websocket.Dialer) ChannelOption {
	return func(c *Channel) {
		c.dialer = dialer
	}
}

func WithHeader(header http.Header) ChannelOption {
	return func(c *Channel) {
		c.header = header
	}
}

func WithWriteTimeout(timeout time.Duration) ChannelOption {
	return func(c *Channel) {
		c.writeTimeout = timeout
	}
}
