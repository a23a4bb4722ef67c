package orchestration

import (
	"errors"
	"reflect"

	"github.com/koscakluka/ema-prompter/core/audio"
)

var errNoAudioOutput = errors.New("no audio output configured")

// audioOutput normalizes blocking-mark (v0) and callback-mark (v1) clients
// behind the output contract used by prompt playback.
type audioOutput struct {
	// base stores the configured output client regardless of protocol version.
	base audioOutputBase
	// v0 is set when the output client supports the blocking mark-wait API.
	v0 AudioOutputV0
	// v1 is set when the output client supports callback-based mark handling.
	v1 AudioOutputV1
}

func newAudioOutput(client audioOutputBase) *audioOutput {
	audioOutput := audioOutput{}
	audioOutput.Set(client)
	return &audioOutput
}

// Set replaces the configured output client. Nil and typed-nil clients are
// treated as unconfigured.
func (a *audioOutput) Set(client audioOutputBase) {
	if a == nil {
		return
	}

	a.base = nil
	a.v0 = nil
	a.v1 = nil

	if isNilAudioOutputBase(client) {
		return
	}
	a.base = client

	if v1, ok := client.(AudioOutputV1); ok {
		a.v1 = v1
		return
	}

	if v0, ok := client.(AudioOutputV0); ok {
		a.v0 = v0
	}
}

func (a *audioOutput) isConfigured() bool {
	return a != nil && (a.v0 != nil || a.v1 != nil)
}

func (a *audioOutput) SendAudio(audio []byte) error {
	if a.v1 != nil {
		return a.v1.SendAudio(audio)
	} else if a.v0 != nil {
		return a.v0.SendAudio(audio)
	}
	return errNoAudioOutput
}

// Mark calls callback once everything sent so far has played.
//
// Blocking v0 outputs are waited on in a goroutine. Without an output the
// callback runs immediately.
func (a *audioOutput) Mark(mark string, callback func(string)) error {
	if a.v1 != nil {
		return a.v1.Mark(mark, callback)
	} else if a.v0 != nil {
		go func() {
			if err := a.v0.AwaitMark(); err != nil {
				logger.Warn("failed to await audio output mark", "mark", mark, "error", err)
			}
			callback(mark)
		}()
		return nil
	}

	callback(mark)
	return nil
}

func (a *audioOutput) ClearBuffer() {
	if a.v1 != nil {
		a.v1.ClearBuffer()
	} else if a.v0 != nil {
		a.v0.ClearBuffer()
	}
}

// EncodingInfo returns the output encoding, or the project default when no
// output is configured.
func (a *audioOutput) EncodingInfo() audio.EncodingInfo {
	if a.base != nil {
		return a.base.EncodingInfo()
	}

	return audio.GetDefaultEncodingInfo()
}

// isNilAudioOutputBase detects nil and typed-nil interface values so Set can
// avoid storing unusable interface wrappers as configured clients.
func isNilAudioOutputBase(client audioOutputBase) bool {
	if client == nil {
		return true
	}

	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
