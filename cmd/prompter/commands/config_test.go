package commands

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/koscakluka/ema-prompter/core/settings"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	config, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("expected missing optional config to be ignored, got %v", err)
	}
	if config != DefaultConfig() {
		t.Fatalf("expected default config, got %+v", config)
	}

	if _, err := LoadConfig(path, true); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected missing required config to fail, got %v", err)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`backend_url: https://prompter.example.com/
audio_backend: portaudio
settings:
  tts_voice_name: tr-TR-Chirp3-HD-Leda
  tts_speaking_rate: 1
  tts_volume_gain_db: 3
  vad_long_ms: 2000
  sentence_mode: false
  interrupt_on_speech: true
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}

	if config.AudioBackend != AudioBackendPortaudio {
		t.Fatalf("expected portaudio backend, got %q", config.AudioBackend)
	}
	if config.Language != "tr" || config.SampleRate != 16000 {
		t.Fatalf("expected unset fields to keep defaults, got %+v", config)
	}
	if config.Settings.VADLongMS != 2000 || config.Settings.SentenceMode {
		t.Fatalf("expected settings block to be applied, got %+v", config.Settings)
	}
	if got := config.AlignmentEndpoint(); got != "wss://prompter.example.com/ws" {
		t.Fatalf("expected alignment url derived from backend, got %q", got)
	}
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("settings:\n  vad_long_ms: 100\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := LoadConfig(path, true); !errors.Is(err, settings.ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	config := DefaultConfig()
	config.BackendURL = "http://10.0.0.2:8000"
	config.Settings.VADLongMS = 2500

	if err := SaveConfig(path, config); err != nil {
		t.Fatalf("expected config to save, got %v", err)
	}
	loaded, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("expected saved config to load, got %v", err)
	}
	if loaded != config {
		t.Fatalf("expected %+v, got %+v", config, loaded)
	}
	if got := loaded.AlignmentEndpoint(); got != "ws://10.0.0.2:8000/ws" {
		t.Fatalf("expected ws alignment url, got %q", got)
	}
}
