package texttospeech

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-prompter/core/audio"
)

// Fetcher returns synthesized audio for a script segment.
type Fetcher interface {
	Fetch(ctx context.Context, index int) ([]byte, error)
}

type SpeechOptions struct {
	// Voice is the provider specific voice name.
	Voice string
	// SpeakingRate is a multiplier where 1.0 is the natural rate.
	SpeakingRate float64
	VolumeGainDB float64

	EncodingInfo audio.EncodingInfo
}

type SpeechOption func(*SpeechOptions)

func WithVoice(voice string) SpeechOption {
	return func(o *SpeechOptions) { o.Voice = voice }
}

func WithSpeakingRate(rate float64) SpeechOption {
	return func(o *SpeechOptions) { o.SpeakingRate = rate }
}

func WithVolumeGainDB(gain float64) SpeechOption {
	return func(o *SpeechOptions) { o.VolumeGainDB = gain }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SpeechOption {
	return func(o *SpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}

func NewSpeechOptions(opts ...SpeechOption) SpeechOptions {
	o := SpeechOptions{
		SpeakingRate: 1.0,
		EncodingInfo: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type fallback []Fetcher

// Fallback tries each fetcher in order and returns the first audio produced.
// When all of them fail the errors are joined.
func Fallback(fetchers ...Fetcher) Fetcher {
	return fallback(fetchers)
}

func (f fallback) Fetch(ctx context.Context, index int) ([]byte, error) {
	var errs []error
	for i, fetcher := range f {
		data, err := fetcher.Fetch(ctx, index)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("fetcher %d: %w", i, err))
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("no fetchers configured")
	}
	return nil, errors.Join(errs...)
}
