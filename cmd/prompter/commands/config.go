package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/koscakluka/ema-prompter/core/alignment"
	"github.com/koscakluka/ema-prompter/core/settings"
)

const (
	AudioBackendMiniaudio = "miniaudio"
	AudioBackendPortaudio = "portaudio"
)

// Config is the CLI configuration file.
type Config struct {
	BackendURL   string `yaml:"backend_url"`
	AlignmentURL string `yaml:"alignment_url,omitempty"`
	Language     string `yaml:"language"`

	AudioBackend string `yaml:"audio_backend"`
	SampleRate   int    `yaml:"sample_rate"`
	// BufferSize is the portaudio frames per buffer.
	BufferSize int `yaml:"buffer_size"`

	DeepgramAPIKey string `yaml:"deepgram_api_key,omitempty"`
	// DeepgramVoice is used to synthesize prompts when the backend cannot.
	DeepgramVoice string `yaml:"deepgram_voice,omitempty"`

	PromptOnLongSilence bool `yaml:"prompt_on_long_silence"`
	// Settings are used when the backend settings cannot be loaded.
	Settings settings.Settings `yaml:"settings"`
}

func DefaultConfig() Config {
	return Config{
		BackendURL:   settings.DefaultBaseURL,
		Language:     "tr",
		AudioBackend: AudioBackendMiniaudio,
		SampleRate:   16000,
		BufferSize:   512,
		Settings:     settings.Default(),
	}
}

// AlignmentEndpoint returns the alignment socket URL, derived from the
// backend URL unless configured explicitly.
func (c Config) AlignmentEndpoint() string {
	if c.AlignmentURL != "" {
		return c.AlignmentURL
	}
	if c.BackendURL == "" {
		return alignment.DefaultURL
	}

	base := strings.TrimRight(c.BackendURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}

func (c Config) Validate() error {
	var errs []error
	if c.AudioBackend != AudioBackendMiniaudio && c.AudioBackend != AudioBackendPortaudio {
		errs = append(errs, fmt.Errorf("unknown audio backend %q", c.AudioBackend))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("buffer size must be positive, got %d", c.BufferSize))
	}
	if err := c.Settings.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ema", appName, "config.yaml")
	}
	return filepath.Join(home, ".ema", appName, "config.yaml")
}

// LoadConfig reads path on top of the defaults. A missing file is only an
// error when required is set.
func LoadConfig(path string, required bool) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return config, nil
		}
		return config, fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("invalid %s: %w", path, err)
	}
	return config, nil
}

// SaveConfig writes config to path, creating the directory if needed.
func SaveConfig(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
