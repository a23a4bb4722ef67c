package deepgram

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-prompter/core/speechtotext"
)

func TestNewCallbackConfigDefaultsToNoopCallbacks(t *testing.T) {
	cb, wsConfig := newCallbackConfig(speechtotext.TranscriptionOptions{})

	cb.interimTranscriptionCallback("interim")
	cb.transcriptionCallback("final")
	cb.startSpeechCallback()
	cb.endSpeechCallback()
	cb.errorCallback(nil)

	if wsConfig.shouldDetectSpeechStart || wsConfig.shouldEnhanceSpeechEndingDetection || wsConfig.shouldRequestInterimResults {
		t.Fatalf("expected optional server features disabled, got %+v", wsConfig)
	}
}

func TestProcessMessageDeliversFinalFragmentsInOrder(t *testing.T) {
	client := NewTranscriptionClient(WithAPIKey("test"))

	var finals []string
	var ended atomic.Int32
	cb, _ := newCallbackConfig(speechtotext.TranscriptionOptions{
		TranscriptionCallback: func(transcript string) { finals = append(finals, transcript) },
		SpeechEndedCallback:   func() { ended.Add(1) },
	})

	client.processMessage([]byte(`{"type":"SpeechStarted"}`), cb)
	client.processMessage([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"merhaba"}]}}`), cb)
	client.processMessage([]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":" merhaba dünya "}]}}`), cb)
	client.processMessage([]byte(`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"nasılsın"}]}}`), cb)
	client.processMessage([]byte(`{"type":"UtteranceEnd"}`), cb)
	client.processMessage([]byte(`not json`), cb)

	if len(finals) != 2 || finals[0] != "merhaba dünya" || finals[1] != "nasılsın" {
		t.Fatalf("expected two ordered final fragments, got %q", finals)
	}
	if n := ended.Load(); n != 1 {
		t.Fatalf("expected speech to end once, got %d", n)
	}
}

func TestTranscribeStreamsAudioAndReportsTranscripts(t *testing.T) {
	upgrader := websocket.Upgrader{}
	query := make(chan url.Values, 1)
	received := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		query <- r.URL.Query()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage && len(data) == 3 {
				received <- data
				_ = conn.WriteMessage(websocket.TextMessage,
					[]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"bir iki"}]}}`))
			}
		}
	}))
	defer server.Close()

	endpoint, _ := url.Parse("ws" + strings.TrimPrefix(server.URL, "http") + "/v1/listen")
	client := NewTranscriptionClient(WithAPIKey("test-key"), WithEndpoint(*endpoint))

	transcripts := make(chan string, 1)
	err := client.Transcribe(t.Context(),
		speechtotext.WithLanguage("tr"),
		speechtotext.WithTranscriptionCallback(func(transcript string) { transcripts <- transcript }),
	)
	if err != nil {
		t.Fatalf("expected transcription to start, got %v", err)
	}

	select {
	case q := <-query:
		if q.Get("language") != "tr" || q.Get("encoding") != "linear16" || q.Get("sample_rate") != "16000" {
			t.Fatalf("expected turkish linear16 stream, got %v", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for connection")
	}

	if err := client.SendAudio([]byte{1, 2, 3}); err != nil {
		t.Fatalf("expected audio to send, got %v", err)
	}
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for audio")
	}

	select {
	case transcript := <-transcripts:
		if transcript != "bir iki" {
			t.Fatalf("expected transcript %q, got %q", "bir iki", transcript)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for transcript")
	}
}

func TestTranscribeRequiresAPIKey(t *testing.T) {
	client := NewTranscriptionClient(WithAPIKey(""))
	if err := client.Transcribe(t.Context()); err == nil {
		t.Fatalf("expected missing api key to fail")
	}
	if err := client.SendAudio([]byte{0}); err != ErrNotStreaming {
		t.Fatalf("expected ErrNotStreaming, got %v", err)
	}
}
