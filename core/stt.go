package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/koscakluka/ema-prompter/core/audio"
	events "github.com/koscakluka/ema-prompter/core/events"
	"github.com/koscakluka/ema-prompter/core/speechtotext"
)

type speechToText struct {
	// client stores the configured speech-to-text implementation.
	client SpeechToText

	emitEvent eventEmitter
	// onFinal receives final transcripts after duplicates were dropped.
	onFinal func(string)

	mu             sync.Mutex
	lastTranscript string
}

func newSpeechToText(client SpeechToText) *speechToText {
	return &speechToText{
		client:    client,
		emitEvent: noopEventEmitter,
		onFinal:   func(string) {},
	}
}

func (s *speechToText) set(client SpeechToText) {
	if s != nil {
		s.client = client
	}
}

func (s *speechToText) Start(ctx context.Context, encodingInfo audio.EncodingInfo, language string) error {
	if !s.isConfigured() {
		return nil
	}

	sttOptions := []speechtotext.TranscriptionOption{
		speechtotext.WithInterimTranscriptionCallback(s.invokeInterimTranscription),
		speechtotext.WithTranscriptionCallback(s.invokeTranscription),
		speechtotext.WithErrorCallback(s.invokeError),
		speechtotext.WithEncodingInfo(encodingInfo),
	}
	if language != "" {
		sttOptions = append(sttOptions, speechtotext.WithLanguage(language))
	}

	if err := s.client.Transcribe(ctx, sttOptions...); err != nil {
		return fmt.Errorf("failed to start transcribing: %w", err)
	}

	return nil
}

func (s *speechToText) SendAudio(audio []byte) error {
	if !s.isConfigured() {
		return nil
	}

	return s.client.SendAudio(audio)
}

func (s *speechToText) Close(ctx context.Context) error {
	if !s.isConfigured() {
		return nil
	}

	switch c := s.client.(type) {
	case interface{ StopStream() error }:
		if err := c.StopStream(); err != nil {
			return fmt.Errorf("failed to stop speech-to-text stream: %w", err)
		}
	case interface{ Close(context.Context) error }:
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}

func (s *speechToText) SetEventEmitter(emitEvent eventEmitter) {
	if s != nil {
		if emitEvent != nil {
			s.emitEvent = emitEvent
		} else {
			s.emitEvent = noopEventEmitter
		}
	}
}

func (s *speechToText) isConfigured() bool {
	return s != nil && s.client != nil
}

func (s *speechToText) invokeInterimTranscription(transcript string) {
	s.emitEvent(events.NewUserTranscriptInterimUpdated(transcript))
}

// invokeTranscription forwards a final transcript unless it repeats the
// previous one.
func (s *speechToText) invokeTranscription(transcript string) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return
	}

	s.mu.Lock()
	duplicate := transcript == s.lastTranscript
	s.lastTranscript = transcript
	s.mu.Unlock()
	if duplicate {
		logger.Debug("dropping repeated transcript", "transcript", transcript)
		return
	}

	s.emitEvent(events.NewUserTranscriptInterimUpdated(""))
	s.emitEvent(events.NewUserTranscriptFinal(transcript))
	s.onFinal(transcript)
}

func (s *speechToText) invokeError(err error) {
	logger.Warn("speech-to-text stream failed", "error", err)
}

func (s *speechToText) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTranscript = ""
}
