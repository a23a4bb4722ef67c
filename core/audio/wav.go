package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrUnsupportedWAV = errors.New("unsupported wav audio")

// WAV is the PCM payload of a RIFF/WAVE file.
type WAV struct {
	SampleRate int
	Channels   int
	Data       []byte
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// DecodeWAV extracts 16-bit PCM from a RIFF/WAVE file. Multi-channel audio is
// downmixed to mono.
func DecodeWAV(data []byte) (WAV, error) {
	if !IsWAV(data) {
		return WAV{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedWAV)
	}

	var (
		wav       WAV
		haveFmt   bool
		bitsPer   uint16
		audioType uint16
	)
	for offset := 12; offset+8 <= len(data); {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := min(body+size, len(data))

		switch id {
		case "fmt ":
			if end-body < 16 {
				return WAV{}, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedWAV)
			}
			audioType = binary.LittleEndian.Uint16(data[body:])
			wav.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			wav.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bitsPer = binary.LittleEndian.Uint16(data[body+14:])
			haveFmt = true
		case "data":
			if !haveFmt {
				return WAV{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedWAV)
			}
			if audioType != 1 || bitsPer != 16 {
				return WAV{}, fmt.Errorf("%w: format %d with %d bits per sample", ErrUnsupportedWAV, audioType, bitsPer)
			}
			wav.Data = downmix(data[body:end], wav.Channels)
			wav.Channels = 1
			return wav, nil
		}

		// chunks are word aligned
		offset = body + size + size%2
	}

	return WAV{}, fmt.Errorf("%w: no data chunk", ErrUnsupportedWAV)
}

func downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}

	frameBytes := 2 * channels
	out := make([]byte, 0, len(pcm)/channels)
	for i := 0; i+frameBytes <= len(pcm); i += frameBytes {
		var sum int
		for ch := range channels {
			sum += int(int16(binary.LittleEndian.Uint16(pcm[i+2*ch:])))
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(sum/channels)))
	}
	return out
}
