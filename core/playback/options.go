package playback

import (
	"context"
	"time"

	"github.com/koscakluka/ema-prompter/core/audio"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 500 * time.Millisecond

	// NoRequest is reported by Playing while nothing is requested.
	NoRequest = -1
)

// Fetcher returns the synthesized prompt audio for a segment. The result is
// either raw LINEAR16 in the output's encoding or a RIFF/WAVE file.
type Fetcher interface {
	Fetch(ctx context.Context, index int) ([]byte, error)
}

type FetcherFunc func(ctx context.Context, index int) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, index int) ([]byte, error) {
	return f(ctx, index)
}

type AudioOutput interface {
	SendAudio(audio []byte) error
	ClearBuffer()
	Mark(name string, callback func(string)) error
	EncodingInfo() audio.EncodingInfo
}

type ControllerOption func(*Controller)

// WithRetry sets the total number of fetch attempts and the delay before the
// first retry. Each further retry doubles the delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) ControllerOption {
	return func(c *Controller) {
		c.maxAttempts = max(1, maxAttempts)
		c.baseDelay = baseDelay
	}
}

// WithFailureCallback is called once a request exhausts its attempts, unless
// it was superseded in the meantime.
func WithFailureCallback(callback func(index int, err error)) ControllerOption {
	return func(c *Controller) {
		c.onFailure = callback
	}
}

func WithPlaybackStartedCallback(callback func(index int)) ControllerOption {
	return func(c *Controller) {
		c.onStarted = callback
	}
}

// WithPlaybackEndedCallback is called when the output has played all audio of
// a request that is still current.
func WithPlaybackEndedCallback(callback func(index int)) ControllerOption {
	return func(c *Controller) {
		c.onEnded = callback
	}
}

func WithBaseContext(ctx context.Context) ControllerOption {
	return func(c *Controller) {
		c.baseCtx = ctx
	}
}
