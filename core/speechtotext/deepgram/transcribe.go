package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-prompter/core/audio"
	"github.com/koscakluka/ema-prompter/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrMissingAPIKey = errors.New("deepgram api key not found")
	ErrNotStreaming  = errors.New("transcription stream not open")
)

// Transcribe opens a streaming recognition session. Results are delivered
// through the callbacks in opts until ctx is cancelled or StopStream is
// called.
func (s *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := speechtotext.TranscriptionOptions{
		EncodingInfo: audio.GetDefaultEncodingInfo(),
		Language:     DefaultLanguage,
	}
	for _, opt := range opts {
		opt(&options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	cb, wsConfig := newCallbackConfig(options)
	conn, err := s.connectWebsocket(ctx, connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),
		language:   options.Language,

		detectSpeechStart:            wsConfig.shouldDetectSpeechStart,
		enhanceSpeechEndingDetection: wsConfig.shouldEnhanceSpeechEndingDetection,
		interimResults:               wsConfig.shouldRequestInterimResults,
	})
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.lastMsgTs = time.Now()
	s.connMu.Unlock()

	go s.readAndProcessMessages(ctx, conn, options.EncodingInfo, cb)

	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	language   string

	detectSpeechStart            bool
	enhanceSpeechEndingDetection bool
	interimResults               bool
}

func (s *TranscriptionClient) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	ctx, span := tracer.Start(ctx, "deepgram.listen.connect", trace.WithAttributes(
		attribute.String("language", options.language),
		attribute.Int("sample_rate", options.sampleRate),
	))
	defer span.End()

	if s.apiKey == "" {
		span.SetStatus(codes.Error, "missing api key")
		return nil, ErrMissingAPIKey
	}

	listenUrl := s.endpoint
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", s.model)
	queryParams.Set("language", options.language)
	queryParams.Set("smart_format", "true")
	if options.enhanceSpeechEndingDetection {
		queryParams.Set("utterance_end_ms", "1000")
		queryParams.Set("interim_results", "true")
	} else if options.interimResults {
		queryParams.Set("interim_results", "true")
	}
	queryParams.Set("endpointing", "300")
	if options.detectSpeechStart || options.enhanceSpeechEndingDetection {
		queryParams.Set("vad_events", "true")
	}

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := s.dialer.DialContext(ctx, listenUrl.String(),
		http.Header{"Authorization": {"Token " + s.apiKey}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (s *TranscriptionClient) sendKeepAlive() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return
	}
	if err := s.conn.WriteJSON(
		struct {
			Type string `json:"type"`
		}{
			Type: "KeepAlive",
		}); err != nil {
		logger.Warn("failed to write keep alive to deepgram", "error", err)
	}
}

func (s *TranscriptionClient) SendAudio(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return ErrNotStreaming
	}
	s.lastMsgTs = time.Now()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) sendSilence(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return ErrNotStreaming
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) sinceLastAudio() time.Duration {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	return time.Since(s.lastMsgTs)
}

// StopStream asks the server to flush pending results and close the stream.
func (s *TranscriptionClient) StopStream() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn != nil {
		if err := s.conn.WriteJSON(struct {
			Type string `json:"type"`
		}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
			return fmt.Errorf("failed to close deepgram stream through websocket: %w", err)
		}
	}
	return nil
}

func (s *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, encoding audio.EncodingInfo, cb callbacks) {
	silenceCtx, silenceCancel := context.WithCancel(ctx)
	defer silenceCancel()

	go s.generateSilence(silenceCtx, encoding)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Error("failed to read deepgram websocket message", "error", err)
				cb.errorCallback(fmt.Errorf("transcription stream ended: %w", err))
			}

			s.connMu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.connMu.Unlock()
			_ = conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(msg, cb)
		}
	}
}

// processMessage handles one server message. Messages are processed on the
// read goroutine so final transcripts keep their recognition order.
func (s *TranscriptionClient) processMessage(msg []byte, cb callbacks) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram transcript", "error", err)
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		if !msgResp.IsFinal {
			if transcript != "" {
				cb.interimTranscriptionCallback(strings.TrimSpace(s.accumulatedTranscript + " " + transcript))
			}
			return
		}

		if transcript != "" {
			s.accumulatedTranscript += " " + transcript
			cb.transcriptionCallback(transcript)
		}
		if msgResp.SpeechFinal {
			s.onSpeechEnded(cb)
		}

	case api.TypeUtteranceEndResponse:
		if s.unendedSegment {
			s.onSpeechEnded(cb)
		}

	case api.TypeSpeechStartedResponse:
		s.unendedSegment = true
		cb.startSpeechCallback()
	}
}

func (s *TranscriptionClient) onSpeechEnded(cb callbacks) {
	s.unendedSegment = false
	s.accumulatedTranscript = ""
	cb.endSpeechCallback()
}

// generateSilence keeps the server's endpointing alive while no audio is
// being sent, first with real silence and then with keep alive messages.
func (s *TranscriptionClient) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const chunkDuration = 50 * time.Millisecond
	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	chunk := make([]byte, encoding.BytesFor(chunkDuration))
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	state := silenceGeneratorStateWaiting
	var firstSilenceTime, lastKeepAliveTime time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := s.sinceLastAudio()
			switch state {
			case silenceGeneratorStateWaiting:
				if idle > chunkDuration {
					state = silenceGeneratorStateSilence
					firstSilenceTime = time.Now()
				}

			case silenceGeneratorStateSilence:
				if idle < chunkDuration {
					state = silenceGeneratorStateWaiting
					continue
				}
				if time.Since(firstSilenceTime) >= time.Second {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = time.Now()
					continue
				}

				if err := s.sendSilence(chunk); err != nil {
					logger.Debug("failed to send silence audio", "error", err)
				}

			case silenceGeneratorStateKeepAlive:
				if idle < chunkDuration {
					state = silenceGeneratorStateWaiting
					continue
				}

				if time.Since(lastKeepAliveTime) >= 5*time.Second {
					lastKeepAliveTime = time.Now()
					s.sendKeepAlive()
				}
			}
		}
	}
}
