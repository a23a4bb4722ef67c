package alignment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Channel is the duplex link to the alignment service.
//
// Every connection instance starts with exactly one init_script message. The
// handshake is written while holding the write lock and the channel only
// reports Open afterwards, so transcript and vad messages can never overtake
// it. Messages sent while the channel is not Open are dropped.
type Channel struct {
	url          string
	script       string
	sentenceMode bool
	forwardVAD   bool

	dialer       *websocket.Dialer
	header       http.Header
	writeTimeout time.Duration

	reconnect   bool
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	onEvent       func(Event)
	onStateChange func(Status)

	droppedSends metric.Int64Counter
	reconnects   metric.Int64Counter

	// writeMu serializes writes and is always taken before mu.
	writeMu sync.Mutex

	mu            sync.Mutex
	status        Status
	conn          *websocket.Conn
	handshakeSent bool
	closing       bool
	cancel        context.CancelFunc
	done          chan struct{}
}

func NewChannel(url, script string, opts ...ChannelOption) *Channel {
	c := &Channel{
		url:           url,
		script:        script,
		forwardVAD:    true,
		dialer:        websocket.DefaultDialer,
		writeTimeout:  DefaultWriteTimeout,
		reconnect:     true,
		maxAttempts:   DefaultMaxReconnectAttempts,
		baseDelay:     DefaultReconnectBaseDelay,
		maxDelay:      DefaultReconnectMaxDelay,
		onEvent:       func(Event) {},
		onStateChange: func(Status) {},
		status:        Status{State: Closed, Reason: ReasonNotStarted},
	}
	if c.url == "" {
		c.url = DefaultURL
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	if c.droppedSends, err = meter.Int64Counter("alignment.sends.dropped"); err != nil {
		logger.Warn("failed to create dropped sends counter", "error", err)
	}
	if c.reconnects, err = meter.Int64Counter("alignment.reconnects"); err != nil {
		logger.Warn("failed to create reconnects counter", "error", err)
	}

	return c
}

// Start connects in the background and keeps the connection alive until ctx
// is cancelled or Close is called. Progress is reported through the state
// handler.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return fmt.Errorf("channel already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.closing = false
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

// Close sends a normal closure frame, stops reconnecting and waits for the
// connection goroutine to finish.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.done == nil {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	done := c.done
	cancel := c.cancel
	c.mu.Unlock()

	var closeErr error
	c.writeMu.Lock()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		closeErr = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeTimeout),
		)
		if errors.Is(closeErr, websocket.ErrCloseSent) {
			closeErr = nil
		}
	}
	c.writeMu.Unlock()

	cancel()
	<-done

	if closeErr != nil {
		return fmt.Errorf("failed to send close frame: %w", closeErr)
	}
	return nil
}

func (c *Channel) State() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// SendTranscript forwards a final transcript. It is a no-op returning nil when
// the channel is not open.
func (c *Channel) SendTranscript(text string) error {
	return c.send(messageTranscript, transcriptMessage{Type: messageTranscript, Text: text})
}

// SendVAD forwards a voice activity change when forwarding is enabled.
func (c *Channel) SendVAD(status VADStatus, dur SilenceDuration) error {
	if !c.forwardVAD {
		return nil
	}
	return c.send(messageVAD, vadMessage{Type: messageVAD, Status: status, Dur: dur})
}

func (c *Channel) send(kind string, msg any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	conn, state, handshakeSent := c.conn, c.status.State, c.handshakeSent
	c.mu.Unlock()

	if state != Open || conn == nil || !handshakeSent {
		if c.droppedSends != nil {
			c.droppedSends.Add(context.Background(), 1, metric.WithAttributes(attribute.String("message.type", kind)))
		}
		logger.Debug("dropping message, channel not open", "type", kind, "state", state.String())
		return nil
	}

	if err := c.writeJSON(conn, msg); err != nil {
		return fmt.Errorf("failed to send %s message: %w", kind, err)
	}
	return nil
}

func (c *Channel) writeJSON(conn *websocket.Conn, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Channel) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		close(c.done)
		c.done = nil
		c.mu.Unlock()
	}()

	attempt := 0
	for {
		connectionID := uuid.NewString()
		c.setStatus(Status{State: Connecting, Attempt: attempt, ConnectionID: connectionID})

		err := c.connectAndServe(ctx, connectionID, func() { attempt = 0 })

		c.mu.Lock()
		c.conn = nil
		c.handshakeSent = false
		closing := c.closing
		c.mu.Unlock()

		switch {
		case closing || ctx.Err() != nil:
			c.setStatus(Status{State: Closed, Reason: ReasonClosedByClient, ConnectionID: connectionID})
			return
		case websocket.IsCloseError(err, websocket.ClosePolicyViolation):
			logger.ErrorContext(ctx, "alignment service rejected the connection", "connection_id", connectionID, "error", err)
			c.setStatus(Status{State: Closed, Reason: ReasonProtocolError, ConnectionID: connectionID})
			return
		case !c.reconnect:
			logger.WarnContext(ctx, "alignment channel disconnected", "connection_id", connectionID, "error", err)
			c.setStatus(Status{State: Closed, Reason: ReasonDisconnected, ConnectionID: connectionID})
			return
		}

		attempt++
		if attempt > c.maxAttempts {
			logger.ErrorContext(ctx, "alignment channel reconnect attempts exhausted", "attempts", c.maxAttempts, "error", err)
			c.setStatus(Status{State: Closed, Reason: ReasonReconnectExhausted, ConnectionID: connectionID})
			return
		}

		delay := min(time.Duration(attempt)*c.baseDelay, c.maxDelay)
		logger.WarnContext(ctx, "alignment channel closed, reconnecting", "attempt", attempt, "delay", delay, "error", err)
		if c.reconnects != nil {
			c.reconnects.Add(ctx, 1)
		}

		select {
		case <-ctx.Done():
			c.setStatus(Status{State: Closed, Reason: ReasonClosedByClient})
			return
		case <-time.After(delay):
		}
	}
}

// connectAndServe dials, performs the handshake and reads until the
// connection ends. onOpen runs once the connection is usable.
func (c *Channel) connectAndServe(ctx context.Context, connectionID string, onOpen func()) error {
	conn, err := c.open(ctx, connectionID)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	onOpen()
	return c.readLoop(ctx, conn, connectionID)
}

func (c *Channel) open(ctx context.Context, connectionID string) (*websocket.Conn, error) {
	ctx, span := tracer.Start(ctx, "alignment.connect", trace.WithAttributes(
		attribute.String("connection.id", connectionID),
		attribute.String("url", c.url),
	))
	defer span.End()

	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, fmt.Errorf("failed to dial alignment service: %w", err)
	}

	if err := c.handshake(conn, connectionID); err != nil {
		_ = conn.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, "handshake failed")
		return nil, err
	}
	c.onStateChange(Status{State: Open, ConnectionID: connectionID})

	logger.InfoContext(ctx, "alignment channel open", "connection_id", connectionID)
	return conn, nil
}

// handshake writes init_script and marks the channel Open without releasing
// the write lock in between.
func (c *Channel) handshake(conn *websocket.Conn, connectionID string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()
	if closing {
		return fmt.Errorf("channel closing")
	}

	msg := initScriptMessage{Type: messageInitScript, Script: c.script, SentenceMode: c.sentenceMode}
	if err := c.writeJSON(conn, msg); err != nil {
		return fmt.Errorf("failed to send init_script: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.handshakeSent = true
	c.status = Status{State: Open, ConnectionID: connectionID}
	c.mu.Unlock()
	return nil
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, connectionID string) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if messageType != websocket.TextMessage {
			logger.DebugContext(ctx, "ignoring non-text alignment message", "connection_id", connectionID, "type", messageType)
			continue
		}

		event, err := decodeEvent(data)
		if err != nil {
			logger.WarnContext(ctx, "discarding alignment message", "connection_id", connectionID, "error", err)
			continue
		}

		c.onEvent(event)
	}
}

func (c *Channel) setStatus(status Status) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()

	c.onStateChange(status)
}
