package orchestration

import events "github.com/koscakluka/ema-prompter/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

type sessionCallbacks struct {
	onEvent                func(events.Event)
	onPointer              func(int)
	onPaused               func(bool)
	onCompleted            func()
	onConnectionState      func(state, reason string)
	onPromptFailed         func(int, error)
	onTranscription        func(string)
	onInterimTranscription func(string)
	onSpeakingStateChanged func(bool)
	onInputAudio           func([]byte)
}

func newCallbackEventEmitter(callbacks sessionCallbacks) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.UserAudioFrame:
			if callbacks.onInputAudio != nil {
				callbacks.onInputAudio(typedEvent.Audio)
			}
		case events.UserSpeechStarted:
			if callbacks.onSpeakingStateChanged != nil {
				callbacks.onSpeakingStateChanged(true)
			}
		case events.UserSpeechEnded:
			if callbacks.onSpeakingStateChanged != nil {
				callbacks.onSpeakingStateChanged(false)
			}
		case events.UserTranscriptInterimUpdated:
			if callbacks.onInterimTranscription != nil {
				callbacks.onInterimTranscription(typedEvent.Transcript)
			}
		case events.UserTranscriptFinal:
			if callbacks.onTranscription != nil {
				callbacks.onTranscription(typedEvent.Transcript)
			}
		case events.SegmentHighlighted:
			if callbacks.onPointer != nil {
				callbacks.onPointer(typedEvent.Index)
			}
		case events.ScriptPaused:
			if callbacks.onPaused != nil {
				callbacks.onPaused(true)
			}
		case events.ScriptResumed:
			if callbacks.onPaused != nil {
				callbacks.onPaused(false)
			}
		case events.ScriptCompleted:
			if callbacks.onPointer != nil {
				callbacks.onPointer(NoSegment)
			}
			if callbacks.onCompleted != nil {
				callbacks.onCompleted()
			}
		case events.AlignmentStateChanged:
			if callbacks.onConnectionState != nil {
				callbacks.onConnectionState(typedEvent.State, typedEvent.Reason)
			}
		case events.PromptFailed:
			if callbacks.onPromptFailed != nil {
				callbacks.onPromptFailed(typedEvent.Index, typedEvent.Err)
			}
		}

		if callbacks.onEvent != nil {
			callbacks.onEvent(event)
		}
	}
}
