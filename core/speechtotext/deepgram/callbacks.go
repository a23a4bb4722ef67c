package deepgram

import "github.com/koscakluka/ema-prompter/core/speechtotext"

type callbacks struct {
	interimTranscriptionCallback func(string)
	transcriptionCallback        func(string)
	startSpeechCallback          func()
	endSpeechCallback            func()
	errorCallback                func(error)
}

type websocketConfig struct {
	shouldDetectSpeechStart            bool
	shouldEnhanceSpeechEndingDetection bool
	shouldRequestInterimResults        bool
}

// newCallbackConfig fills unset callbacks with no-ops and derives which
// optional server features the configured callbacks need.
func newCallbackConfig(options speechtotext.TranscriptionOptions) (callbacks, websocketConfig) {
	config := websocketConfig{
		shouldDetectSpeechStart:            options.SpeechStartedCallback != nil,
		shouldEnhanceSpeechEndingDetection: options.SpeechEndedCallback != nil,
		shouldRequestInterimResults:        options.InterimTranscriptionCallback != nil,
	}

	cb := callbacks{
		interimTranscriptionCallback: func(string) {},
		transcriptionCallback:        func(string) {},
		startSpeechCallback:          func() {},
		endSpeechCallback:            func() {},
		errorCallback:                func(error) {},
	}
	if options.InterimTranscriptionCallback != nil {
		cb.interimTranscriptionCallback = options.InterimTranscriptionCallback
	}
	if options.TranscriptionCallback != nil {
		cb.transcriptionCallback = options.TranscriptionCallback
	}
	if options.SpeechStartedCallback != nil {
		cb.startSpeechCallback = options.SpeechStartedCallback
	}
	if options.SpeechEndedCallback != nil {
		cb.endSpeechCallback = options.SpeechEndedCallback
	}
	if options.ErrorCallback != nil {
		cb.errorCallback = options.ErrorCallback
	}

	return cb, config
}
