package alignment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newAlignmentTestServer(t *testing.T, handler func(conn *websocket.Conn)) (string, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	return wsURL, server.Close
}

type clientMessage struct {
	Type         string `json:"type"`
	Script       string `json:"script"`
	SentenceMode bool   `json:"sentenceMode"`
	Text         string `json:"text"`
	Status       string `json:"status"`
	Dur          string `json:"dur"`
}

func readClientMessage(conn *websocket.Conn) (clientMessage, error) {
	var msg clientMessage
	_, data, err := conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	err = json.Unmarshal(data, &msg)
	return msg, err
}

func waitForStatus(t *testing.T, statuses <-chan Status, want func(Status) bool) Status {
	t.Helper()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case status := <-statuses:
			if want(status) {
				return status
			}
		case <-timeout:
			t.Fatalf("timed out waiting for channel status")
			return Status{}
		}
	}
}

func statusRecorder() (func(Status), <-chan Status) {
	statuses := make(chan Status, 64)
	return func(status Status) { statuses <- status }, statuses
}

func TestChannelSendsHandshakeOnceBeforeOtherMessages(t *testing.T) {
	received := make(chan []clientMessage, 1)
	serverURL, closeServer := newAlignmentTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		var messages []clientMessage
		for {
			msg, err := readClientMessage(conn)
			if err != nil {
				received <- messages
				return
			}
			messages = append(messages, msg)
		}
	})
	defer closeServer()

	onState, statuses := statusRecorder()
	channel := NewChannel(serverURL, "Merhaba dünya.", WithSentenceMode(true), WithStateHandler(onState))

	if err := channel.SendTranscript("too early"); err != nil {
		t.Fatalf("expected send before start to be dropped silently, got %v", err)
	}

	stopSending := make(chan struct{})
	var senders sync.WaitGroup
	for range 8 {
		senders.Add(1)
		go func() {
			defer senders.Done()
			for {
				select {
				case <-stopSending:
					return
				default:
				}
				if err := channel.SendTranscript("racing"); err != nil {
					t.Errorf("expected no error from send, got %v", err)
					return
				}
				time.Sleep(time.Millisecond)
			}
		}()
	}

	if err := channel.Start(t.Context()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	waitForStatus(t, statuses, func(s Status) bool { return s.State == Open })
	time.Sleep(20 * time.Millisecond)
	close(stopSending)
	senders.Wait()

	if err := channel.Close(); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}

	var messages []clientMessage
	select {
	case messages = <-received:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for server to finish")
	}

	if len(messages) == 0 || messages[0].Type != messageInitScript {
		t.Fatalf("expected init_script first, got %+v", messages)
	}
	if messages[0].Script != "Merhaba dünya." || !messages[0].SentenceMode {
		t.Fatalf("expected handshake to carry script and mode, got %+v", messages[0])
	}
	for _, msg := range messages[1:] {
		if msg.Type != messageTranscript {
			t.Fatalf("expected only transcripts after handshake, got %+v", msg)
		}
		if msg.Text == "too early" {
			t.Fatalf("expected pre-open send to be dropped, not queued")
		}
	}
}

func TestChannelDeliversEventsInOrderAndSkipsMalformed(t *testing.T) {
	serverURL, closeServer := newAlignmentTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if _, err := readClientMessage(conn); err != nil {
			return
		}
		for _, frame := range []string{
			`{"event":"highlight","index":0}`,
			`{"event":"highlight","index":1}`,
			`not json`,
			`{"event":"dance"}`,
			`{"event":"highlight"}`,
			`{"event":"pause"}`,
			`{"event":"resume"}`,
			`{"event":"highlight","index":2}`,
			`{"event":"completed"}`,
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	})
	defer closeServer()

	events := make(chan Event, 16)
	channel := NewChannel(serverURL, "script", WithEventHandler(func(e Event) { events <- e }))
	if err := channel.Start(t.Context()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	defer channel.Close()

	want := []Event{
		{Kind: EventHighlight, Index: 0},
		{Kind: EventHighlight, Index: 1},
		{Kind: EventPause},
		{Kind: EventResume},
		{Kind: EventHighlight, Index: 2},
		{Kind: EventCompleted},
	}
	for i, expected := range want {
		select {
		case got := <-events:
			if got != expected {
				t.Fatalf("expected event %d to be %+v, got %+v", i, expected, got)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	if status := channel.State(); status.State != Open {
		t.Fatalf("expected malformed frames to leave channel open, got %s", status)
	}
}

func TestChannelReconnectResendsHandshake(t *testing.T) {
	var connections atomic.Int32
	handshakes := make(chan clientMessage, 4)
	serverURL, closeServer := newAlignmentTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		n := connections.Add(1)
		msg, err := readClientMessage(conn)
		if err != nil {
			return
		}
		handshakes <- msg
		if n == 1 {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"highlight","index":7}`))
		_, _, _ = conn.ReadMessage()
	})
	defer closeServer()

	events := make(chan Event, 4)
	channel := NewChannel(serverURL, "script",
		WithEventHandler(func(e Event) { events <- e }),
		WithReconnect(3, 10*time.Millisecond, 50*time.Millisecond),
	)
	if err := channel.Start(t.Context()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	defer channel.Close()

	select {
	case event := <-events:
		if event.Kind != EventHighlight || event.Index != 7 {
			t.Fatalf("expected highlight 7 after reconnect, got %+v", event)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for reconnect")
	}

	for i := range 2 {
		select {
		case msg := <-handshakes:
			if msg.Type != messageInitScript {
				t.Fatalf("expected connection %d to start with init_script, got %+v", i+1, msg)
			}
		default:
			t.Fatalf("expected a handshake on connection %d", i+1)
		}
	}
}

func TestChannelSurfacesReconnectExhaustion(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	serverURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	server.Close()

	onState, statuses := statusRecorder()
	channel := NewChannel(serverURL, "script",
		WithStateHandler(onState),
		WithReconnect(2, time.Millisecond, 5*time.Millisecond),
	)
	if err := channel.Start(t.Context()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	status := waitForStatus(t, statuses, func(s Status) bool { return s.State == Closed })
	if status.Reason != ReasonReconnectExhausted || !status.Disconnected() {
		t.Fatalf("expected reconnect exhaustion, got %s", status)
	}
	if err := channel.SendTranscript("after exhaustion"); err != nil {
		t.Fatalf("expected send after exhaustion to be dropped, got %v", err)
	}
}

func TestChannelWithoutReconnectSurfacesDisconnect(t *testing.T) {
	serverURL, closeServer := newAlignmentTestServer(t, func(conn *websocket.Conn) {
		_, _ = readClientMessage(conn)
		_ = conn.Close()
	})
	defer closeServer()

	onState, statuses := statusRecorder()
	channel := NewChannel(serverURL, "script", WithStateHandler(onState), WithoutReconnect())
	if err := channel.Start(t.Context()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	status := waitForStatus(t, statuses, func(s Status) bool { return s.State == Closed })
	if status.Reason != ReasonDisconnected {
		t.Fatalf("expected disconnected, got %s", status)
	}
}

func TestChannelPolicyViolationDoesNotReconnect(t *testing.T) {
	var connections atomic.Int32
	serverURL, closeServer := newAlignmentTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		connections.Add(1)
		_, _ = readClientMessage(conn)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "init_script required"))
		_, _, _ = conn.ReadMessage()
	})
	defer closeServer()

	onState, statuses := statusRecorder()
	channel := NewChannel(serverURL, "script",
		WithStateHandler(onState),
		WithReconnect(5, time.Millisecond, time.Millisecond),
	)
	if err := channel.Start(t.Context()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	status := waitForStatus(t, statuses, func(s Status) bool { return s.State == Closed })
	if status.Reason != ReasonProtocolError {
		t.Fatalf("expected protocol error, got %s", status)
	}
	time.Sleep(20 * time.Millisecond)
	if n := connections.Load(); n != 1 {
		t.Fatalf("expected a single connection, got %d", n)
	}
}

func TestChannelCloseSendsNormalClosure(t *testing.T) {
	closeCode := make(chan int, 1)
	serverURL, closeServer := newAlignmentTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				code := -1
				if closeErr, ok := err.(*websocket.CloseError); ok {
					code = closeErr.Code
				}
				closeCode <- code
				return
			}
		}
	})
	defer closeServer()

	onState, statuses := statusRecorder()
	channel := NewChannel(serverURL, "script", WithStateHandler(onState))
	if err := channel.Start(t.Context()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	waitForStatus(t, statuses, func(s Status) bool { return s.State == Open })

	if err := channel.Close(); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}

	select {
	case code := <-closeCode:
		if code != websocket.CloseNormalClosure {
			t.Fatalf("expected close code %d, got %d", websocket.CloseNormalClosure, code)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for close frame")
	}

	if status := channel.State(); status.State != Closed || status.Reason != ReasonClosedByClient {
		t.Fatalf("expected closed by client, got %s", status)
	}
}

func TestChannelVADForwardingCanBeDisabled(t *testing.T) {
	received := make(chan clientMessage, 4)
	serverURL, closeServer := newAlignmentTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			msg, err := readClientMessage(conn)
			if err != nil {
				return
			}
			received <- msg
		}
	})
	defer closeServer()

	onState, statuses := statusRecorder()
	channel := NewChannel(serverURL, "script", WithStateHandler(onState), WithVADForwarding(false))
	if err := channel.Start(t.Context()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	defer channel.Close()
	waitForStatus(t, statuses, func(s Status) bool { return s.State == Open })

	if err := channel.SendVAD(VADSilenceStart, SilenceLong); err != nil {
		t.Fatalf("expected disabled vad forwarding to be a no-op, got %v", err)
	}
	if err := channel.SendTranscript("merhaba"); err != nil {
		t.Fatalf("expected transcript send to succeed, got %v", err)
	}

	for _, want := range []string{messageInitScript, messageTranscript} {
		select {
		case msg := <-received:
			if msg.Type != want {
				t.Fatalf("expected %s, got %+v", want, msg)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}
