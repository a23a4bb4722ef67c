package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-prompter/core/audio"
)

var ErrCaptureUnavailable = errors.New("audio capture unavailable")

// audioInput owns the session's microphone capture. Capture is acquired once
// and every frame is handed to all registered consumers, none of which can
// stop it. Only Close releases the device.
type audioInput struct {
	// base stores the configured input client.
	base AudioInput

	// connected reports whether a concrete input client is currently configured.
	connected atomic.Bool
	// isCapturing reports whether the input client is currently capturing audio.
	isCapturing atomic.Bool

	mu        sync.RWMutex
	consumers []func(audio []byte)
}

func newAudioInput(client AudioInput, consumers ...func(audio []byte)) *audioInput {
	audioInput := audioInput{}
	audioInput.Set(client)
	for _, consumer := range consumers {
		audioInput.AddConsumer(consumer)
	}
	return &audioInput
}

func (a *audioInput) Set(client AudioInput) {
	if a == nil {
		return
	}

	a.base = client
	a.connected.Store(client != nil)
	a.isCapturing.Store(false)
}

// AddConsumer registers a receiver for every captured frame.
func (a *audioInput) AddConsumer(consumer func(audio []byte)) {
	if a == nil || consumer == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.consumers = append(a.consumers, consumer)
}

func (a *audioInput) IsConfigured() bool { return a != nil && a.connected.Load() }
func (a *audioInput) IsCapturing() bool  { return a != nil && a.isCapturing.Load() }

// Capture starts the device. It is a no-op while already capturing.
func (a *audioInput) Capture(ctx context.Context) error {
	if !a.IsConfigured() {
		return ErrCaptureUnavailable
	}

	if !a.isCapturing.CompareAndSwap(false, true) {
		return nil
	}

	if err := a.base.StartCapture(ctx, a.onAudio); err != nil {
		a.isCapturing.Store(false)
		return fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}
	return nil
}

// Close stops capture and releases the device.
func (a *audioInput) Close() error {
	if !a.IsConfigured() {
		return nil
	}

	var errs error
	if a.isCapturing.CompareAndSwap(true, false) {
		if err := a.base.StopCapture(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to stop capture: %w", err))
		}
	}

	switch c := a.base.(type) {
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close audio input: %w", err))
		}
	case interface{ Close() }:
		c.Close()
	}

	return errs
}

func (a *audioInput) EncodingInfo() audio.EncodingInfo {
	if a == nil || a.base == nil {
		return audio.GetDefaultEncodingInfo()
	}

	if info := a.base.EncodingInfo(); !info.IsZero() {
		return info
	}
	return audio.GetDefaultEncodingInfo()
}

func (a *audioInput) onAudio(audio []byte) {
	a.mu.RLock()
	consumers := a.consumers
	a.mu.RUnlock()

	for _, consumer := range consumers {
		consumer(audio)
	}
}
