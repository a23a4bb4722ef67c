package orchestration

import (
	"time"

	"github.com/koscakluka/ema-prompter/core/alignment"
	"github.com/koscakluka/ema-prompter/core/events"
	"github.com/koscakluka/ema-prompter/core/vad"
)

const slowEventThreshold = 100 * time.Millisecond

// process applies one queued event. It only ever runs on the session event
// loop.
func (s *Session) process(queued queuedEvent) {
	if waited := time.Since(queued.queuedAt); waited > slowEventThreshold {
		logger.Debug("session event waited in queue", "waited", waited, "queued", s.runtime.queuedEventCount())
	}

	switch event := queued.event.(type) {
	case channelEvent:
		if !s.isCurrentChannel(event.generation) {
			logger.Debug("dropping event from replaced alignment channel", "kind", string(event.event.Kind))
			return
		}
		s.applyAlignmentEvent(event.event)
	case channelState:
		if !s.isCurrentChannel(event.generation) {
			return
		}
		s.applyChannelState(event.status)
	case vad.Event:
		s.applyVoiceActivity(event)
	default:
		logger.Warn("unknown session event", "event", event)
	}
}

func (s *Session) isCurrentChannel(generation uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return generation == s.channelGeneration
}

func (s *Session) applyAlignmentEvent(event alignment.Event) {
	switch event.Kind {
	case alignment.EventHighlight:
		s.mu.Lock()
		if event.Index < 0 || event.Index >= len(s.segments) {
			count := len(s.segments)
			s.mu.Unlock()
			logger.Warn("ignoring highlight outside the script", "index", event.Index, "segments", count)
			return
		}
		previous := s.pointer
		s.pointer = event.Index
		s.mu.Unlock()

		if previous != event.Index {
			s.stopPrompt("pointer moved")
		}
		s.emitEvent(events.NewSegmentHighlighted(event.Index, previous))

	case alignment.EventPause:
		s.mu.Lock()
		s.paused = true
		pointer := s.pointer
		s.mu.Unlock()

		s.emitEvent(events.NewScriptPaused(pointer))
		if pointer != NoSegment {
			s.prompt(pointer)
		}

	case alignment.EventResume:
		s.mu.Lock()
		s.paused = false
		pointer := s.pointer
		s.mu.Unlock()

		s.stopPrompt("resumed")
		s.emitEvent(events.NewScriptResumed(pointer))

	case alignment.EventCompleted:
		s.mu.Lock()
		s.pointer = NoSegment
		s.paused = false
		s.mu.Unlock()

		s.stopPrompt("completed")
		s.emitEvent(events.NewScriptCompleted())
	}
}

func (s *Session) applyChannelState(status alignment.Status) {
	if status.Disconnected() {
		logger.Warn("alignment channel lost", "state", status.String(), "connection_id", status.ConnectionID)
	}

	s.emitEvent(events.NewAlignmentStateChanged(status.State.String(), string(status.Reason), status.Attempt, status.ConnectionID))
}

func (s *Session) applyVoiceActivity(event vad.Event) {
	s.mu.RLock()
	channel := s.channel
	interrupt := s.config.InterruptOnSpeech
	promptOnSilence := s.config.PromptOnLongSilence
	pointer := s.pointer
	s.mu.RUnlock()

	send := func(status alignment.VADStatus, dur alignment.SilenceDuration) {
		if channel == nil {
			return
		}
		if err := channel.SendVAD(status, dur); err != nil {
			logger.Warn("failed to forward voice activity", "status", string(status), "error", err)
		}
	}

	switch event.Type {
	case vad.EventSpeechStart:
		send(alignment.VADSpeechStart, alignment.SilenceNone)
		s.emitEvent(events.NewUserSpeechStarted())
		if interrupt {
			s.stopPrompt("speech started")
		}

	case vad.EventSilenceShort:
		send(alignment.VADSilenceStart, alignment.SilenceShort)
		s.emitEvent(events.NewUserSpeechEnded())

	case vad.EventSilenceLong:
		send(alignment.VADSilenceStart, alignment.SilenceLong)
		s.emitEvent(events.NewUserSilenceLong())
		if promptOnSilence && pointer != NoSegment {
			s.prompt(pointer)
		}
	}
}
