package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-prompter/core"
	"github.com/koscakluka/ema-prompter/core/audio/miniaudio"
	"github.com/koscakluka/ema-prompter/core/audio/portaudio"
	"github.com/koscakluka/ema-prompter/core/events"
	"github.com/koscakluka/ema-prompter/core/playback"
	"github.com/koscakluka/ema-prompter/core/settings"
	sttdeepgram "github.com/koscakluka/ema-prompter/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-prompter/core/texttospeech"
	ttsdeepgram "github.com/koscakluka/ema-prompter/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-prompter/core/texttospeech/endpoint"
	"github.com/spf13/cobra"
)

var (
	flagRunWords bool
	flagRunMute  bool
)

var runCmd = &cobra.Command{
	Use:   "run <script-file>",
	Short: "Follow along with a script",
	Long: `Open the microphone and follow along while you read the script.

The current segment is highlighted as the backend aligns your speech. When
you stall the backend pauses and the segment is spoken aloud.

Keys: w toggles word mode, arrows scroll, q quits.`,
	Args: cobra.ExactArgs(1),
	RunE: runSession,
}

func init() {
	runCmd.Flags().BoolVar(&flagRunWords, "words", false, "start in word mode instead of sentence mode")
	runCmd.Flags().BoolVar(&flagRunMute, "mute", false, "never speak prompts")
}

// audioDevice is a duplex device used both as the microphone and as the
// prompt speaker.
type audioDevice interface {
	orchestration.AudioInput
	orchestration.AudioOutputV1
	Close()
}

func runSession(cmd *cobra.Command, args []string) error {
	config, err := getConfig()
	if err != nil {
		return err
	}

	script, err := readScript(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	values := loadSettings(ctx, config)

	device, err := newAudioDevice(config)
	if err != nil {
		return err
	}

	var current atomic.Pointer[orchestration.Session]
	var program atomic.Pointer[tea.Program]

	sessionOptions := []orchestration.SessionOption{
		orchestration.WithSettings(values),
		orchestration.WithAlignmentURL(config.AlignmentEndpoint()),
		orchestration.WithLanguage(config.Language),
		orchestration.WithPromptOnLongSilence(config.PromptOnLongSilence),
		orchestration.WithAudioInput(device),
		orchestration.WithAudioOutput(device),
		orchestration.WithEventHandler(func(event events.Event) {
			if _, ok := event.(events.UserAudioFrame); ok {
				return
			}
			if p := program.Load(); p != nil {
				p.Send(sessionEventMsg{event: event})
			}
		}),
	}
	if flagRunWords {
		sessionOptions = append(sessionOptions, orchestration.WithSentenceMode(false))
	}
	if !flagRunMute {
		fetcher := newPromptFetcher(config, values, device, sessionSegments{session: &current})
		sessionOptions = append(sessionOptions, orchestration.WithPromptFetcher(fetcher))
	}
	if apiKey := deepgramAPIKey(config); apiKey != "" {
		sessionOptions = append(sessionOptions, orchestration.WithSpeechToTextClient(
			sttdeepgram.NewTranscriptionClient(sttdeepgram.WithAPIKey(apiKey)),
		))
	} else {
		slog.Warn("DEEPGRAM_API_KEY not set, running without transcription")
	}

	session := orchestration.NewSession(script, sessionOptions...)
	current.Store(session)
	defer session.Stop()

	p := tea.NewProgram(newPromptModel(session), tea.WithAltScreen(), tea.WithContext(ctx))
	program.Store(p)

	go func() {
		if err := session.Start(ctx); err != nil {
			p.Send(sessionErrMsg{err: err})
		}
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}

// loadSettings prefers the backend settings, falls back to the config file
// and applies environment overrides on top.
func loadSettings(ctx context.Context, config Config) settings.Settings {
	values, err := settings.NewClient(config.BackendURL).Get(ctx)
	if err != nil {
		slog.Warn("failed to load backend settings, using config file", "error", err)
		values = config.Settings
	}

	overridden, err := settings.FromEnv(values)
	if err != nil {
		slog.Warn("ignoring invalid settings overrides", "error", err)
		return values
	}
	return overridden
}

func newAudioDevice(config Config) (audioDevice, error) {
	switch config.AudioBackend {
	case AudioBackendPortaudio:
		device, err := portaudio.NewClient(config.BufferSize)
		if err != nil {
			return nil, fmt.Errorf("open portaudio device: %w", err)
		}
		return device, nil
	default:
		device, err := miniaudio.NewClient(miniaudio.WithSampleRate(config.SampleRate))
		if err != nil {
			return nil, fmt.Errorf("open miniaudio device: %w", err)
		}
		return device, nil
	}
}

// newPromptFetcher fetches prompt audio from the backend and, when a
// Deepgram key is available, synthesizes it locally if the backend fails.
func newPromptFetcher(config Config, values settings.Settings, device audioDevice, segments ttsdeepgram.SegmentSource) playback.Fetcher {
	backend := endpoint.NewClient(config.BackendURL)

	apiKey := deepgramAPIKey(config)
	if apiKey == "" {
		return backend
	}

	voice, ok := ttsdeepgram.ParseVoice(config.DeepgramVoice)
	if !ok && config.DeepgramVoice != "" {
		slog.Warn("unknown deepgram voice, using the default", "voice", config.DeepgramVoice)
	}

	speechOptions := append(values.SpeechOptions(), texttospeech.WithEncodingInfo(device.EncodingInfo()))
	local, err := ttsdeepgram.NewTextToSpeechClient(segments, voice,
		ttsdeepgram.WithAPIKey(apiKey),
		ttsdeepgram.WithSpeechOptions(speechOptions...),
	)
	if err != nil {
		slog.Warn("local prompt synthesis unavailable", "error", err)
		return backend
	}

	return texttospeech.Fallback(backend, local)
}

func deepgramAPIKey(config Config) string {
	if config.DeepgramAPIKey != "" {
		return config.DeepgramAPIKey
	}
	return os.Getenv("DEEPGRAM_API_KEY")
}

// sessionSegments resolves segment text from the session once it exists.
type sessionSegments struct {
	session *atomic.Pointer[orchestration.Session]
}

func (s sessionSegments) SegmentText(index int) (string, bool) {
	session := s.session.Load()
	if session == nil {
		return "", false
	}
	return session.SegmentText(index)
}
