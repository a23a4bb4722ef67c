package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: EncodingLinear16}
}

// EncodingInfo describes mono PCM audio flowing between capture, detection,
// transcription and prompt playback.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	}

	return 0
}

// BytesFor returns the whole-sample byte length of d worth of audio.
func (e EncodingInfo) BytesFor(d time.Duration) int {
	sampleSize := e.Format.ByteSize()
	if sampleSize <= 0 || e.SampleRate <= 0 || d <= 0 {
		return 0
	}

	samples := int(int64(e.SampleRate) * int64(d) / int64(time.Second))
	return samples * sampleSize
}

// Duration is the inverse of BytesFor.
func (e EncodingInfo) Duration(byteCount int) time.Duration {
	sampleSize := e.Format.ByteSize()
	if sampleSize <= 0 || e.SampleRate <= 0 {
		return 0
	}

	return time.Duration(int64(byteCount/sampleSize) * int64(time.Second) / int64(e.SampleRate))
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
