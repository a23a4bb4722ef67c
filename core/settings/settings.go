package settings

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-prompter/core/texttospeech"
)

var ErrInvalidSettings = errors.New("invalid settings")

const (
	MinVADLongMS = 800
	MaxVADLongMS = 3000
)

var (
	Voices = []string{
		"tr-TR-Chirp3-HD-Charon",
		"tr-TR-Chirp3-HD-Leda",
		"tr-TR-Chirp3-HD-Aoede",
		"tr-TR-Chirp3-HD-Kore",
		"tr-TR-Chirp3-HD-Puck",
		"tr-TR-Chirp3-HD-Fenrir",
		"tr-TR-Chirp3-HD-Orus",
		"tr-TR-Chirp3-HD-Zephyr",
	}
	SpeakingRates = []float64{0.75, 0.9, 1.0, 1.15, 1.25, 1.5}
	VolumeGains   = []float64{-6, -3, 0, 3, 6}
)

// Settings is the user-adjustable configuration shared with the backend.
type Settings struct {
	TTSVoiceName      string  `json:"tts_voice_name" yaml:"tts_voice_name" jsonschema:"enum=tr-TR-Chirp3-HD-Charon,enum=tr-TR-Chirp3-HD-Leda,enum=tr-TR-Chirp3-HD-Aoede,enum=tr-TR-Chirp3-HD-Kore,enum=tr-TR-Chirp3-HD-Puck,enum=tr-TR-Chirp3-HD-Fenrir,enum=tr-TR-Chirp3-HD-Orus,enum=tr-TR-Chirp3-HD-Zephyr,default=tr-TR-Chirp3-HD-Charon"`
	TTSSpeakingRate   float64 `json:"tts_speaking_rate" yaml:"tts_speaking_rate" jsonschema:"enum=0.75,enum=0.9,enum=1,enum=1.15,enum=1.25,enum=1.5,default=1.15"`
	TTSVolumeGainDB   float64 `json:"tts_volume_gain_db" yaml:"tts_volume_gain_db" jsonschema:"enum=-6,enum=-3,enum=0,enum=3,enum=6,default=0"`
	VADLongMS         int     `json:"vad_long_ms" yaml:"vad_long_ms" jsonschema:"minimum=800,maximum=3000,default=1500"`
	SentenceMode      bool    `json:"sentence_mode" yaml:"sentence_mode" jsonschema:"default=true"`
	InterruptOnSpeech bool    `json:"interrupt_on_speech" yaml:"interrupt_on_speech" jsonschema:"default=true"`
}

func Default() Settings {
	return Settings{
		TTSVoiceName:      "tr-TR-Chirp3-HD-Charon",
		TTSSpeakingRate:   1.15,
		TTSVolumeGainDB:   0,
		VADLongMS:         1500,
		SentenceMode:      true,
		InterruptOnSpeech: true,
	}
}

func (s Settings) Validate() error {
	var errs []error
	if !slices.Contains(Voices, s.TTSVoiceName) {
		errs = append(errs, fmt.Errorf("unsupported tts_voice_name %q", s.TTSVoiceName))
	}
	if !slices.Contains(SpeakingRates, s.TTSSpeakingRate) {
		errs = append(errs, fmt.Errorf("unsupported tts_speaking_rate %v", s.TTSSpeakingRate))
	}
	if !slices.Contains(VolumeGains, s.TTSVolumeGainDB) {
		errs = append(errs, fmt.Errorf("unsupported tts_volume_gain_db %v", s.TTSVolumeGainDB))
	}
	if s.VADLongMS < MinVADLongMS || s.VADLongMS > MaxVADLongMS {
		errs = append(errs, fmt.Errorf("vad_long_ms %d outside [%d, %d]", s.VADLongMS, MinVADLongMS, MaxVADLongMS))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}

// ApplyTo copies every setting onto the same-named fields of target, which
// must be a pointer to a struct.
func (s Settings) ApplyTo(target any) error {
	if err := copier.Copy(target, &s); err != nil {
		return fmt.Errorf("failed to apply settings: %w", err)
	}
	return nil
}

// SpeechOptions maps the tts_* settings to synthesis options.
func (s Settings) SpeechOptions() []texttospeech.SpeechOption {
	return []texttospeech.SpeechOption{
		texttospeech.WithVoice(s.TTSVoiceName),
		texttospeech.WithSpeakingRate(s.TTSSpeakingRate),
		texttospeech.WithVolumeGainDB(s.TTSVolumeGainDB),
	}
}

// FromEnv overrides base with any of TTS_VOICE_NAME, TTS_SPEAKING_RATE,
// TTS_VOLUME_GAIN_DB, VAD_LONG_MS, SENTENCE_MODE and INTERRUPT_ON_SPEECH
// that are set.
func FromEnv(base Settings) (Settings, error) {
	s := base
	var errs []error

	if v, ok := lookupEnv("TTS_VOICE_NAME"); ok {
		s.TTSVoiceName = v
	}
	if v, ok := lookupEnv("TTS_SPEAKING_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		errs = append(errs, envError("TTS_SPEAKING_RATE", err))
		if err == nil {
			s.TTSSpeakingRate = f
		}
	}
	if v, ok := lookupEnv("TTS_VOLUME_GAIN_DB"); ok {
		f, err := strconv.ParseFloat(v, 64)
		errs = append(errs, envError("TTS_VOLUME_GAIN_DB", err))
		if err == nil {
			s.TTSVolumeGainDB = f
		}
	}
	if v, ok := lookupEnv("VAD_LONG_MS"); ok {
		n, err := strconv.Atoi(v)
		errs = append(errs, envError("VAD_LONG_MS", err))
		if err == nil {
			s.VADLongMS = n
		}
	}
	if v, ok := lookupEnv("SENTENCE_MODE"); ok {
		b, err := strconv.ParseBool(v)
		errs = append(errs, envError("SENTENCE_MODE", err))
		if err == nil {
			s.SentenceMode = b
		}
	}
	if v, ok := lookupEnv("INTERRUPT_ON_SPEECH"); ok {
		b, err := strconv.ParseBool(v)
		errs = append(errs, envError("INTERRUPT_ON_SPEECH", err))
		if err == nil {
			s.InterruptOnSpeech = b
		}
	}

	if err := errors.Join(errs...); err != nil {
		return base, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return s, nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func envError(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", key, err)
}
