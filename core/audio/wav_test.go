package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func buildWAV(sampleRate, channels, bits int, pcm []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*bits/8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels*bits/8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bits))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func TestDecodeWAVMono(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	wav, err := DecodeWAV(buildWAV(24000, 1, 16, pcm))
	if err != nil {
		t.Fatalf("expected wav to decode, got %v", err)
	}

	if wav.SampleRate != 24000 || wav.Channels != 1 {
		t.Fatalf("expected 24000 Hz mono, got %d Hz with %d channels", wav.SampleRate, wav.Channels)
	}
	if !bytes.Equal(wav.Data, pcm) {
		t.Fatalf("expected pcm %v, got %v", pcm, wav.Data)
	}
}

func TestDecodeWAVDownmixesStereo(t *testing.T) {
	pcm := []byte{}
	pcm = binary.LittleEndian.AppendUint16(pcm, uint16(100))
	pcm = binary.LittleEndian.AppendUint16(pcm, uint16(300))

	wav, err := DecodeWAV(buildWAV(16000, 2, 16, pcm))
	if err != nil {
		t.Fatalf("expected wav to decode, got %v", err)
	}

	if got := int16(binary.LittleEndian.Uint16(wav.Data)); len(wav.Data) != 2 || got != 200 {
		t.Fatalf("expected a single averaged sample of 200, got %v", wav.Data)
	}
}

func TestDecodeWAVRejectsUnsupportedInput(t *testing.T) {
	if _, err := DecodeWAV([]byte("not a wav file at all")); !errors.Is(err, ErrUnsupportedWAV) {
		t.Fatalf("expected ErrUnsupportedWAV for raw bytes, got %v", err)
	}
	if _, err := DecodeWAV(buildWAV(16000, 1, 8, []byte{1, 2})); !errors.Is(err, ErrUnsupportedWAV) {
		t.Fatalf("expected ErrUnsupportedWAV for 8-bit audio, got %v", err)
	}
}

func TestResampleSameRateIsPassthrough(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	out, err := Resample(pcm, 16000, 16000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !bytes.Equal(out, pcm) {
		t.Fatalf("expected passthrough, got %v", out)
	}
}

func TestEncodingInfoBytesFor(t *testing.T) {
	info := GetDefaultEncodingInfo()

	if got := info.BytesFor(32 * time.Millisecond); got != 1024 {
		t.Fatalf("expected 1024 bytes, got %d", got)
	}
	if got := info.Duration(32000); got != time.Second {
		t.Fatalf("expected 1s, got %s", got)
	}
}
