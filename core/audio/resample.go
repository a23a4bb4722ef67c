package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono LINEAR16 audio between sample rates.
func Resample(pcm []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate == toRate || len(pcm) < 2 {
		return pcm, nil
	}

	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(fromRate),
		OutputRate: float64(toRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	input := make([]float64, len(pcm)/2)
	for i := range input {
		input[i] = float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768.0
	}

	output, err := resampler.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}

	out := make([]byte, 0, len(output)*2)
	for _, s := range output {
		s = math.Max(-1, math.Min(1, s))
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(s*math.MaxInt16)))
	}
	return out, nil
}
