package orchestration

import (
	"testing"

	"github.com/koscakluka/ema-prompter/core/settings"
)

func TestDefaultConfig(t *testing.T) {
	s := NewSession(testScript)

	if !s.config.SentenceMode || !s.config.InterruptOnSpeech || !s.config.ForwardVAD {
		t.Fatalf("expected sentence mode, interrupts and vad forwarding by default, got %+v", s.config)
	}
	if s.config.PromptOnLongSilence {
		t.Fatalf("expected long silence prompts to be disabled by default")
	}
	if s.config.VADLongMS != 1500 {
		t.Fatalf("expected 1500ms long silence, got %d", s.config.VADLongMS)
	}
}

func TestWithSettingsAppliesBehaviour(t *testing.T) {
	values := settings.Default()
	values.SentenceMode = false
	values.InterruptOnSpeech = false
	values.VADLongMS = 2200

	s := NewSession(testScript, WithSettings(values))

	if s.config.SentenceMode || s.config.InterruptOnSpeech {
		t.Fatalf("expected settings to disable sentence mode and interrupts, got %+v", s.config)
	}
	if s.config.VADLongMS != 2200 {
		t.Fatalf("expected 2200ms long silence, got %d", s.config.VADLongMS)
	}
	if !s.config.ForwardVAD {
		t.Fatalf("expected settings to leave vad forwarding untouched")
	}
	if s.SentenceMode() {
		t.Fatalf("expected session to segment in word mode")
	}
}

func TestWithChannelFactoryNilKeepsDefault(t *testing.T) {
	s := NewSession(testScript, WithChannelFactory(nil))

	if s.newChannel == nil {
		t.Fatalf("expected default channel factory to be kept")
	}
}
