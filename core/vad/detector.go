package vad

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/koscakluka/ema-prompter/core/audio"
)

const (
	DefaultSpeechThreshold  = 0.015
	DefaultSilenceThreshold = 0.008
	DefaultStartFrames      = 3
	DefaultRedemptionFrames = 15
	DefaultFrameDuration    = 32 * time.Millisecond
)

// SpeechSink receives the raw speech boundaries found by a Detector.
type SpeechSink interface {
	OnSpeechStart()
	OnSpeechEnd()
}

// Detector is an energy based speech detector over LINEAR16 audio. It uses
// two thresholds so the level has to rise above SpeechThreshold for
// startFrames frames to start speech and stay under SilenceThreshold for
// redemptionFrames frames to end it.
type Detector struct {
	sink SpeechSink

	speechThreshold  float64
	silenceThreshold float64
	startFrames      int
	redemptionFrames int
	frameBytes       int

	mu           sync.Mutex
	remainder    []byte
	inSpeech     bool
	speechCount  int
	silenceCount int
}

type DetectorOption func(*Detector)

func WithThresholds(speech, silence float64) DetectorOption {
	return func(d *Detector) {
		d.speechThreshold = speech
		d.silenceThreshold = silence
	}
}

func WithStartFrames(frames int) DetectorOption {
	return func(d *Detector) {
		d.startFrames = frames
	}
}

func WithRedemptionFrames(frames int) DetectorOption {
	return func(d *Detector) {
		d.redemptionFrames = frames
	}
}

func NewDetector(sink SpeechSink, encoding audio.EncodingInfo, opts ...DetectorOption) *Detector {
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}

	d := &Detector{
		sink:             sink,
		speechThreshold:  DefaultSpeechThreshold,
		silenceThreshold: DefaultSilenceThreshold,
		startFrames:      DefaultStartFrames,
		redemptionFrames: DefaultRedemptionFrames,
		frameBytes:       encoding.BytesFor(DefaultFrameDuration),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.frameBytes < 2 {
		d.frameBytes = 2
	}

	return d
}

// Write consumes captured LINEAR16 little endian audio. Partial frames are
// buffered until the next call.
func (d *Detector) Write(pcm []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.remainder = append(d.remainder, pcm...)
	for len(d.remainder) >= d.frameBytes {
		d.processFrame(d.remainder[:d.frameBytes])
		d.remainder = d.remainder[d.frameBytes:]
	}
	if len(d.remainder) == 0 {
		d.remainder = nil
	}
}

// Reset forgets any partial frame and speech state without notifying the
// sink.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.remainder = nil
	d.inSpeech = false
	d.speechCount = 0
	d.silenceCount = 0
}

func (d *Detector) processFrame(frame []byte) {
	level := rms(frame)

	if d.inSpeech {
		if level < d.silenceThreshold {
			d.silenceCount++
			if d.silenceCount >= d.redemptionFrames {
				d.inSpeech = false
				d.silenceCount = 0
				d.sink.OnSpeechEnd()
			}
		} else {
			d.silenceCount = 0
		}
		return
	}

	if level >= d.speechThreshold {
		d.speechCount++
		if d.speechCount >= d.startFrames {
			d.inSpeech = true
			d.speechCount = 0
			d.sink.OnSpeechStart()
		}
	} else {
		d.speechCount = 0
	}
}

// rms returns the normalized root mean square level of a LINEAR16 frame.
func rms(frame []byte) float64 {
	samples := len(frame) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < samples; i++ {
		sample := float64(int16(binary.LittleEndian.Uint16(frame[2*i:]))) / math.MaxInt16
		sum += sample * sample
	}
	return math.Sqrt(sum / float64(samples))
}
