package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-prompter/core/alignment"
	"github.com/koscakluka/ema-prompter/core/events"
	"github.com/koscakluka/ema-prompter/core/playback"
	"github.com/koscakluka/ema-prompter/core/segmentation"
	"github.com/koscakluka/ema-prompter/core/vad"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// NoSegment is the pointer value once the script is completed, or when the
// script has no segments.
const NoSegment = -1

// SegmentPointer is the index of the segment the speaker is reading.
type SegmentPointer = int

var (
	ErrNotStarted     = errors.New("session not started")
	ErrAlreadyStarted = errors.New("session already started")
	ErrSessionStopped = errors.New("session stopped")
)

// Session follows one speaker through one script.
//
// Alignment events, voice activity events and channel state changes are
// applied by a single event loop. Callbacks run on that loop or on the
// goroutine that produced the event and must not call Stop or
// SetSentenceMode.
type Session struct {
	script       string
	config       Config
	language     string
	alignmentURL string

	newChannel      ChannelFactory
	vadOptions      []vad.MachineOption
	detectorOptions []vad.DetectorOption
	playbackOptions []playback.ControllerOption
	fetcher         playback.Fetcher

	audioInput   audioInput
	audioOutput  audioOutput
	speechToText speechToText
	runtime      *sessionRuntime

	callbacks sessionCallbacks
	emitEvent eventEmitter

	promptsRequested     metric.Int64Counter
	transcriptsForwarded metric.Int64Counter

	stopOnce sync.Once

	mu                sync.RWMutex
	segments          []segmentation.Segment
	buckets           [][]int
	pointer           SegmentPointer
	paused            bool
	started           bool
	stopped           bool
	baseContext       context.Context
	cancel            context.CancelFunc
	channel           AlignmentChannel
	channelGeneration uint64
	machine           *vad.Machine
	detector          *vad.Detector
	prompts           *playback.Controller
}

func NewSession(script string, opts ...SessionOption) *Session {
	s := &Session{
		script:      script,
		config:      DefaultConfig(),
		newChannel:  NewAlignmentChannel(),
		runtime:     newSessionRuntime(),
		baseContext: context.Background(),
		speechToText: speechToText{
			emitEvent: noopEventEmitter,
			onFinal:   func(string) {},
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.emitEvent = newCallbackEventEmitter(s.callbacks)
	s.speechToText.SetEventEmitter(s.emitEvent)
	s.speechToText.onFinal = s.forwardTranscript
	s.audioInput.AddConsumer(s.onInputAudio)
	s.resegment()

	var err error
	if s.promptsRequested, err = meter.Int64Counter("session.prompts.requested"); err != nil {
		logger.Warn("failed to create prompts requested counter", "error", err)
	}
	if s.transcriptsForwarded, err = meter.Int64Counter("session.transcripts.forwarded"); err != nil {
		logger.Warn("failed to create transcripts forwarded counter", "error", err)
	}

	return s
}

// Start connects to the alignment service and, when an audio input is
// configured, starts listening. Capture errors are returned and leave the
// session stopped. A failing speech-to-text client or alignment connection
// only degrades the session.
func (s *Session) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		cancel()
		return ErrSessionStopped
	case s.started:
		s.mu.Unlock()
		cancel()
		return ErrAlreadyStarted
	}
	s.started = true
	s.baseContext = runCtx
	s.cancel = cancel
	s.mu.Unlock()

	spanCtx, span := tracer.Start(ctx, "start session", trace.WithAttributes(
		attribute.Int("script.segments", len(s.Segments())),
		attribute.Bool("sentence_mode", s.SentenceMode()),
	))
	defer span.End()

	s.runtime.start(s.process)
	s.startPrompts(runCtx)

	if err := s.openChannel(runCtx); err != nil {
		span.RecordError(err)
		logger.WarnContext(spanCtx, "failed to start alignment channel", "error", err)
	}

	if !s.audioInput.IsConfigured() {
		logger.InfoContext(spanCtx, "no audio input configured, transcripts must be submitted manually")
		return nil
	}

	if err := s.startListening(runCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start listening")
		s.Stop()
		return err
	}

	return nil
}

// Stop abandons prompt playback, releases the microphone and closes the
// alignment channel. It waits for the event loop to finish and is safe to call
// more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		ctx, cancel := s.baseContext, s.cancel
		machine, channel, prompts := s.machine, s.channel, s.prompts
		s.detector = nil
		s.mu.Unlock()

		span := trace.SpanFromContext(ctx)
		if prompts != nil {
			prompts.Close()
		}

		if err := s.audioInput.Close(); err != nil {
			recordedErr := fmt.Errorf("failed to close audio input: %w", err)
			span.RecordError(recordedErr)
			logger.WarnContext(ctx, "failed to close audio input", "error", err)
		}

		if machine != nil {
			machine.Stop()
		}

		if err := s.speechToText.Close(ctx); err != nil {
			span.RecordError(err)
			logger.WarnContext(ctx, "failed to close speech-to-text client", "error", err)
		}

		if channel != nil {
			if err := channel.Close(); err != nil {
				span.RecordError(err)
				logger.WarnContext(ctx, "failed to close alignment channel", "error", err)
			}
		}

		s.runtime.end()
		s.runtime.waitUntilEnded()

		if cancel != nil {
			cancel()
		}
	})
}

// SetSentenceMode segments the script again and, on a running session,
// replaces the alignment connection so the service sees the new mode. The
// pointer returns to the first segment.
func (s *Session) SetSentenceMode(enabled bool) {
	s.mu.Lock()
	if s.config.SentenceMode == enabled {
		s.mu.Unlock()
		return
	}
	s.config.SentenceMode = enabled
	s.resegmentLocked()
	count := len(s.segments)
	s.channelGeneration++
	running := s.started && !s.stopped
	var old AlignmentChannel
	if running {
		old = s.channel
		s.channel = nil
	}
	ctx := s.baseContext
	s.mu.Unlock()

	s.stopPrompt("segments changed")
	s.speechToText.reset()
	s.emitEvent(events.NewSegmentsChanged(count, enabled))

	if !running {
		return
	}

	if old != nil {
		if err := old.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close alignment channel", "error", err)
		}
	}
	if err := s.openChannel(ctx); err != nil {
		logger.WarnContext(ctx, "failed to restart alignment channel", "error", err)
	}
}

// SubmitTranscript forwards a final transcript as if it came from the
// speech-to-text client. Repeats of the previous transcript are dropped.
func (s *Session) SubmitTranscript(transcript string) error {
	s.mu.RLock()
	running := s.started && !s.stopped
	s.mu.RUnlock()
	if !running {
		return ErrNotStarted
	}

	s.speechToText.invokeTranscription(transcript)
	return nil
}

func (s *Session) Pointer() SegmentPointer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pointer
}

func (s *Session) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

func (s *Session) SentenceMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.SentenceMode
}

func (s *Session) Segments() []segmentation.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]segmentation.Segment(nil), s.segments...)
}

func (s *Session) Buckets() [][]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make([][]int, len(s.buckets))
	for i, bucket := range s.buckets {
		buckets[i] = append([]int(nil), bucket...)
	}
	return buckets
}

// SegmentText returns the text of segment index.
func (s *Session) SegmentText(index int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.segments) {
		return "", false
	}
	return s.segments[index].Text, true
}

// ConnectionState reports the alignment channel state.
func (s *Session) ConnectionState() alignment.Status {
	s.mu.RLock()
	channel := s.channel
	s.mu.RUnlock()

	if channel == nil {
		return alignment.Status{State: alignment.Closed, Reason: alignment.ReasonNotStarted}
	}
	return channel.State()
}

// VoiceActivity reports the debounced voice activity state.
func (s *Session) VoiceActivity() vad.State {
	s.mu.RLock()
	machine := s.machine
	s.mu.RUnlock()

	if machine == nil {
		return vad.Idle
	}
	return machine.State()
}

func (s *Session) resegment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resegmentLocked()
}

func (s *Session) resegmentLocked() {
	s.segments, s.buckets = segmentation.New(segmentation.WithSentenceMode(s.config.SentenceMode)).Split(s.script)
	s.pointer = 0
	if len(s.segments) == 0 {
		s.pointer = NoSegment
	}
	s.paused = false
}

func (s *Session) openChannel(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	generation := s.channelGeneration
	config := ChannelConfig{
		URL:          s.alignmentURL,
		Script:       s.script,
		SentenceMode: s.config.SentenceMode,
		ForwardVAD:   s.config.ForwardVAD,
		OnEvent: func(event alignment.Event) {
			s.runtime.enqueue(channelEvent{generation: generation, event: event})
		},
		OnState: func(status alignment.Status) {
			s.runtime.enqueue(channelState{generation: generation, status: status})
		},
	}
	s.mu.Unlock()

	channel := s.newChannel(config)

	s.mu.Lock()
	if s.stopped || generation != s.channelGeneration {
		s.mu.Unlock()
		return nil
	}
	s.channel = channel
	s.mu.Unlock()

	return channel.Start(ctx)
}

func (s *Session) startListening(ctx context.Context) error {
	encoding := s.audioInput.EncodingInfo()

	longSilence := vad.DefaultLongSilence
	if s.config.VADLongMS > 0 {
		longSilence = time.Duration(s.config.VADLongMS) * time.Millisecond
	}
	machineOptions := append([]vad.MachineOption{
		vad.WithLongSilence(longSilence),
		vad.WithEventHandler(s.onVoiceActivity),
	}, s.vadOptions...)

	machine, err := vad.NewMachine(machineOptions...)
	if err != nil {
		return fmt.Errorf("invalid voice activity config: %w", err)
	}
	machine.Start()
	detector := vad.NewDetector(machine, encoding, s.detectorOptions...)

	s.mu.Lock()
	s.machine = machine
	s.detector = detector
	s.mu.Unlock()

	if err := s.speechToText.Start(ctx, encoding, s.language); err != nil {
		logger.WarnContext(ctx, "speech-to-text unavailable, continuing without transcripts", "error", err)
	}

	return s.audioInput.Capture(ctx)
}

func (s *Session) startPrompts(ctx context.Context) {
	if s.fetcher == nil {
		return
	}
	if !s.audioOutput.isConfigured() {
		logger.WarnContext(ctx, "prompt fetcher configured without audio output, prompts disabled")
		return
	}

	controllerOptions := append([]playback.ControllerOption{
		playback.WithBaseContext(ctx),
		playback.WithFailureCallback(func(index int, err error) {
			s.emitEvent(events.NewPromptFailed(index, err))
		}),
		playback.WithPlaybackStartedCallback(func(index int) {
			s.emitEvent(events.NewPromptStarted(index))
		}),
		playback.WithPlaybackEndedCallback(func(index int) {
			s.emitEvent(events.NewPromptEnded(index))
		}),
	}, s.playbackOptions...)

	s.mu.Lock()
	s.prompts = playback.NewController(s.fetcher, &s.audioOutput, controllerOptions...)
	s.mu.Unlock()
}

func (s *Session) onInputAudio(audio []byte) {
	if s.callbacks.onInputAudio != nil || s.callbacks.onEvent != nil {
		s.emitEvent(events.NewUserAudioFrame(audio))
	}

	s.mu.RLock()
	detector := s.detector
	s.mu.RUnlock()
	if detector != nil {
		detector.Write(audio)
	}

	if err := s.speechToText.SendAudio(audio); err != nil {
		logger.Debug("failed to send audio to speech-to-text", "error", err)
	}
}

// onVoiceActivity runs under the machine's lock and only queues the event.
func (s *Session) onVoiceActivity(event vad.Event) {
	s.runtime.enqueue(event)
}

func (s *Session) forwardTranscript(transcript string) {
	s.mu.RLock()
	channel, ctx := s.channel, s.baseContext
	s.mu.RUnlock()
	if channel == nil {
		return
	}

	if err := channel.SendTranscript(transcript); err != nil {
		logger.WarnContext(ctx, "failed to forward transcript", "error", err)
		return
	}
	if s.transcriptsForwarded != nil {
		s.transcriptsForwarded.Add(ctx, 1)
	}
}

func (s *Session) currentPrompts() *playback.Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompts
}

func (s *Session) prompt(index int) {
	prompts := s.currentPrompts()
	if prompts == nil {
		return
	}

	s.emitEvent(events.NewPromptRequested(index))
	if s.promptsRequested != nil {
		s.promptsRequested.Add(context.Background(), 1)
	}
	prompts.Play(index)
}

func (s *Session) stopPrompt(reason string) {
	prompts := s.currentPrompts()
	if prompts == nil {
		return
	}

	active := prompts.Playing() != playback.NoRequest
	prompts.Stop()
	if active {
		s.emitEvent(events.NewPromptStopped(reason))
	}
}
