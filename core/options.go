package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-prompter/core/alignment"
	"github.com/koscakluka/ema-prompter/core/audio"
	"github.com/koscakluka/ema-prompter/core/events"
	"github.com/koscakluka/ema-prompter/core/playback"
	"github.com/koscakluka/ema-prompter/core/settings"
	"github.com/koscakluka/ema-prompter/core/speechtotext"
	"github.com/koscakluka/ema-prompter/core/vad"
)

type SessionOption func(*Session)

// Config holds the behaviour switches of a session. Field names match
// settings.Settings so backend settings can be applied directly.
type Config struct {
	SentenceMode      bool
	InterruptOnSpeech bool
	VADLongMS         int
	// PromptOnLongSilence plays the current segment on silence_long without
	// waiting for the alignment service to pause.
	PromptOnLongSilence bool
	// ForwardVAD sends voice activity to the alignment service.
	ForwardVAD bool
}

func DefaultConfig() Config {
	return Config{
		SentenceMode:      true,
		InterruptOnSpeech: true,
		VADLongMS:         int(vad.DefaultLongSilence / time.Millisecond),
		ForwardVAD:        true,
	}
}

func WithConfig(config Config) SessionOption {
	return func(s *Session) { s.config = config }
}

// WithSettings applies the behavioural part of backend settings on top of the
// current configuration.
func WithSettings(values settings.Settings) SessionOption {
	return func(s *Session) {
		if err := values.ApplyTo(&s.config); err != nil {
			logger.Warn("failed to apply settings to session", "error", err)
		}
	}
}

func WithSentenceMode(enabled bool) SessionOption {
	return func(s *Session) { s.config.SentenceMode = enabled }
}

func WithInterruptOnSpeech(enabled bool) SessionOption {
	return func(s *Session) { s.config.InterruptOnSpeech = enabled }
}

func WithPromptOnLongSilence(enabled bool) SessionOption {
	return func(s *Session) { s.config.PromptOnLongSilence = enabled }
}

type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
}

func WithSpeechToTextClient(client SpeechToText) SessionOption {
	return func(s *Session) { s.speechToText.set(client) }
}

// WithLanguage sets the transcription language, the client default is used
// when empty.
func WithLanguage(language string) SessionOption {
	return func(s *Session) { s.language = language }
}

// AudioInput is a microphone the session captures from for its whole
// lifetime.
type AudioInput interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	EncodingInfo() audio.EncodingInfo
}

func WithAudioInput(client AudioInput) SessionOption {
	return func(s *Session) { s.audioInput.Set(client) }
}

type audioOutputBase interface {
	SendAudio(audio []byte) error
	ClearBuffer()
	EncodingInfo() audio.EncodingInfo
}

type AudioOutputV0 interface {
	audioOutputBase
	AwaitMark() error
}

type AudioOutputV1 interface {
	audioOutputBase
	Mark(string, func(string)) error
}

// WithAudioOutput sets where prompt audio is played. Outputs implementing
// either AudioOutputV0 or AudioOutputV1 are accepted.
func WithAudioOutput(client audioOutputBase) SessionOption {
	return func(s *Session) { s.audioOutput.Set(client) }
}

func WithPromptFetcher(fetcher playback.Fetcher) SessionOption {
	return func(s *Session) { s.fetcher = fetcher }
}

func WithPlaybackOptions(opts ...playback.ControllerOption) SessionOption {
	return func(s *Session) { s.playbackOptions = append(s.playbackOptions, opts...) }
}

// ChannelConfig is everything a session needs from an alignment channel.
type ChannelConfig struct {
	URL          string
	Script       string
	SentenceMode bool
	ForwardVAD   bool
	OnEvent      func(alignment.Event)
	OnState      func(alignment.Status)
}

// AlignmentChannel is the session's view of alignment.Channel.
type AlignmentChannel interface {
	Start(ctx context.Context) error
	Close() error
	State() alignment.Status
	SendTranscript(text string) error
	SendVAD(status alignment.VADStatus, dur alignment.SilenceDuration) error
}

type ChannelFactory func(config ChannelConfig) AlignmentChannel

// NewAlignmentChannel builds an alignment.Channel, extra options are applied
// after the session's own.
func NewAlignmentChannel(opts ...alignment.ChannelOption) ChannelFactory {
	return func(config ChannelConfig) AlignmentChannel {
		channelOptions := []alignment.ChannelOption{
			alignment.WithSentenceMode(config.SentenceMode),
			alignment.WithVADForwarding(config.ForwardVAD),
			alignment.WithEventHandler(config.OnEvent),
			alignment.WithStateHandler(config.OnState),
		}
		return alignment.NewChannel(config.URL, config.Script, append(channelOptions, opts...)...)
	}
}

func WithAlignmentURL(url string) SessionOption {
	return func(s *Session) { s.alignmentURL = url }
}

func WithChannelFactory(factory ChannelFactory) SessionOption {
	return func(s *Session) {
		if factory != nil {
			s.newChannel = factory
		}
	}
}

func WithVADOptions(opts ...vad.MachineOption) SessionOption {
	return func(s *Session) { s.vadOptions = append(s.vadOptions, opts...) }
}

func WithDetectorOptions(opts ...vad.DetectorOption) SessionOption {
	return func(s *Session) { s.detectorOptions = append(s.detectorOptions, opts...) }
}

// WithEventHandler receives every session event. It is called after the
// typed callbacks.
func WithEventHandler(handler func(events.Event)) SessionOption {
	return func(s *Session) { s.callbacks.onEvent = handler }
}

func WithPointerCallback(callback func(index int)) SessionOption {
	return func(s *Session) { s.callbacks.onPointer = callback }
}

func WithPausedCallback(callback func(paused bool)) SessionOption {
	return func(s *Session) { s.callbacks.onPaused = callback }
}

func WithCompletedCallback(callback func()) SessionOption {
	return func(s *Session) { s.callbacks.onCompleted = callback }
}

func WithConnectionStateCallback(callback func(state, reason string)) SessionOption {
	return func(s *Session) { s.callbacks.onConnectionState = callback }
}

func WithPromptFailedCallback(callback func(index int, err error)) SessionOption {
	return func(s *Session) { s.callbacks.onPromptFailed = callback }
}

func WithTranscriptionCallback(callback func(transcript string)) SessionOption {
	return func(s *Session) { s.callbacks.onTranscription = callback }
}

func WithInterimTranscriptionCallback(callback func(transcript string)) SessionOption {
	return func(s *Session) { s.callbacks.onInterimTranscription = callback }
}

func WithSpeakingStateCallback(callback func(speaking bool)) SessionOption {
	return func(s *Session) { s.callbacks.onSpeakingStateChanged = callback }
}

func WithInputAudioCallback(callback func(audio []byte)) SessionOption {
	return func(s *Session) { s.callbacks.onInputAudio = callback }
}
