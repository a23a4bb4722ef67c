package orchestration

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/koscakluka/ema-prompter/core/audio"
)

func TestWithAudioInputConfiguresAudioInputFacade(t *testing.T) {
	inputClient := &sessionInputStub{}
	s := NewSession(testScript, WithAudioInput(inputClient))

	if !s.audioInput.IsConfigured() {
		t.Fatalf("expected audio input facade to be configured")
	}
	if s.audioInput.base != inputClient {
		t.Fatalf("expected facade client to match configured audio input")
	}
}

func TestAudioInputFacadeUsesDefaultEncodingInfoWhenUnset(t *testing.T) {
	facade := newAudioInput(nil)

	if facade.IsConfigured() {
		t.Fatalf("expected unset facade to be unconfigured")
	}
	if got, want := facade.EncodingInfo(), audio.GetDefaultEncodingInfo(); got != want {
		t.Fatalf("expected default encoding info %+v, got %+v", want, got)
	}
	if err := facade.Capture(context.Background()); !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable without input, got %v", err)
	}
}

func TestAudioInputFacadeFansOutToEveryConsumer(t *testing.T) {
	inputClient := &sessionInputStub{}
	var first, second atomic.Int32
	facade := newAudioInput(inputClient,
		func([]byte) { first.Add(1) },
		func([]byte) { second.Add(1) },
	)

	if err := facade.Capture(context.Background()); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}
	if err := facade.Capture(context.Background()); err != nil {
		t.Fatalf("expected repeated capture to be a no-op, got %v", err)
	}

	inputClient.push([]byte{1, 2})
	inputClient.push([]byte{3, 4})

	if first.Load() != 2 || second.Load() != 2 {
		t.Fatalf("expected both consumers to see 2 frames, got %d and %d", first.Load(), second.Load())
	}
	if !facade.IsCapturing() {
		t.Fatalf("expected facade to report capturing")
	}
}

func TestAudioInputFacadeCloseReleasesDevice(t *testing.T) {
	inputClient := &closingInputStub{}
	facade := newAudioInput(inputClient)

	if err := facade.Capture(context.Background()); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}
	if err := facade.Close(); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}
	if err := facade.Close(); err != nil {
		t.Fatalf("expected second close to succeed, got %v", err)
	}

	if inputClient.stopCalls.Load() != 1 {
		t.Fatalf("expected capture to stop once, got %d", inputClient.stopCalls.Load())
	}
	if inputClient.closeCalls.Load() != 2 {
		t.Fatalf("expected the device to be closed on every Close, got %d", inputClient.closeCalls.Load())
	}
	if facade.IsCapturing() {
		t.Fatalf("expected facade to stop capturing")
	}
}

func TestAudioInputFacadeWrapsStartFailure(t *testing.T) {
	startErr := errors.New("permission denied")
	facade := newAudioInput(&sessionInputStub{startErr: startErr})

	err := facade.Capture(context.Background())
	if !errors.Is(err, ErrCaptureUnavailable) || !errors.Is(err, startErr) {
		t.Fatalf("expected wrapped capture error, got %v", err)
	}
	if facade.IsCapturing() {
		t.Fatalf("expected failed capture to leave the facade idle")
	}
}

type closingInputStub struct {
	sessionInputStub
	closeCalls atomic.Int32
}

func (i *closingInputStub) Close() error {
	i.closeCalls.Add(1)
	return nil
}
