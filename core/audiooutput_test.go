package orchestration

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-prompter/core/audio"
)

func TestAudioOutputSetReplacesClient(t *testing.T) {
	original := &snapshotAudioOutputV0{}
	replacement := &snapshotAudioOutputV0{}

	facade := newAudioOutput(original)
	facade.Set(replacement)

	if err := facade.SendAudio([]byte{0x02}); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	facade.ClearBuffer()

	if got := original.sendCalls(); got != 0 {
		t.Fatalf("expected replaced client to receive no audio, got %d", got)
	}
	if got := replacement.sendCalls(); got != 1 {
		t.Fatalf("expected facade to send audio through replacement client once, got %d", got)
	}
	if got := replacement.clearCalls(); got != 1 {
		t.Fatalf("expected facade to clear replacement client once, got %d", got)
	}
}

func TestAudioOutputFacadeTreatsTypedNilAsUnconfigured(t *testing.T) {
	var outputClient *snapshotAudioOutputV0

	facade := newAudioOutput(outputClient)

	if facade.isConfigured() {
		t.Fatalf("expected typed nil output client to be treated as unconfigured")
	}
	if facade.base != nil {
		t.Fatalf("expected base client to be nil for typed nil output client")
	}
	if facade.v0 != nil || facade.v1 != nil {
		t.Fatalf("expected version-specific clients to be nil for typed nil output client")
	}

	callbackCalled := false
	facade.Mark("typed-nil-mark", func(string) {
		callbackCalled = true
	})
	if !callbackCalled {
		t.Fatalf("expected unconfigured facade to invoke mark callback")
	}
}

func TestAudioOutputFacadeSetTypedNilClearsConfiguration(t *testing.T) {
	facade := newAudioOutput(&snapshotAudioOutputV0{})
	if !facade.isConfigured() {
		t.Fatalf("expected facade to start configured")
	}

	var outputClient *snapshotAudioOutputV0
	facade.Set(outputClient)

	if facade.isConfigured() {
		t.Fatalf("expected facade to become unconfigured after setting typed nil output client")
	}
	if facade.base != nil {
		t.Fatalf("expected base client to be nil after setting typed nil output client")
	}
	if facade.v0 != nil || facade.v1 != nil {
		t.Fatalf("expected version-specific clients to be nil after setting typed nil output client")
	}
}

func TestAudioOutputPrefersCallbackMarks(t *testing.T) {
	output := &snapshotAudioOutputV1{}
	facade := newAudioOutput(output)

	callbackCalls := 0
	if err := facade.Mark("prompt-mark", func(string) { callbackCalls++ }); err != nil {
		t.Fatalf("expected mark to succeed, got %v", err)
	}

	if callbackCalls != 1 {
		t.Fatalf("expected mark callback once, got %d", callbackCalls)
	}
	if got := output.markCalls(); got != 1 {
		t.Fatalf("expected v1 mark handler once, got %d", got)
	}
	if facade.v0 != nil {
		t.Fatalf("expected v1 output to not be used through the v0 path")
	}
}

func TestAudioOutputAwaitsBlockingMark(t *testing.T) {
	output := &snapshotAudioOutputV0{}
	facade := newAudioOutput(output)

	marked := make(chan string, 1)
	if err := facade.Mark("prompt-mark", func(mark string) { marked <- mark }); err != nil {
		t.Fatalf("expected mark to succeed, got %v", err)
	}

	select {
	case mark := <-marked:
		if mark != "prompt-mark" {
			t.Fatalf("expected mark prompt-mark, got %q", mark)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for mark callback")
	}
	if got := output.awaitCalls(); got != 1 {
		t.Fatalf("expected one AwaitMark call, got %d", got)
	}
}

func TestAudioOutputWithoutClientRejectsAudio(t *testing.T) {
	facade := newAudioOutput(nil)

	if err := facade.SendAudio([]byte{1}); !errors.Is(err, errNoAudioOutput) {
		t.Fatalf("expected errNoAudioOutput, got %v", err)
	}
	if got, want := facade.EncodingInfo(), audio.GetDefaultEncodingInfo(); got != want {
		t.Fatalf("expected default encoding info %+v, got %+v", want, got)
	}
}

type snapshotAudioOutputV0 struct {
	mu         sync.Mutex
	sendCount  int
	clearCount int
	awaitCount int
}

func (output *snapshotAudioOutputV0) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (output *snapshotAudioOutputV0) SendAudio([]byte) error {
	output.mu.Lock()
	output.sendCount++
	output.mu.Unlock()
	return nil
}

func (output *snapshotAudioOutputV0) ClearBuffer() {
	output.mu.Lock()
	output.clearCount++
	output.mu.Unlock()
}

func (output *snapshotAudioOutputV0) AwaitMark() error {
	output.mu.Lock()
	output.awaitCount++
	output.mu.Unlock()
	return nil
}

func (output *snapshotAudioOutputV0) sendCalls() int {
	output.mu.Lock()
	defer output.mu.Unlock()
	return output.sendCount
}

func (output *snapshotAudioOutputV0) clearCalls() int {
	output.mu.Lock()
	defer output.mu.Unlock()
	return output.clearCount
}

func (output *snapshotAudioOutputV0) awaitCalls() int {
	output.mu.Lock()
	defer output.mu.Unlock()
	return output.awaitCount
}

type snapshotAudioOutputV1 struct {
	mu         sync.Mutex
	sendCount  int
	clearCount int
	markCount  int
}

func (output *snapshotAudioOutputV1) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (output *snapshotAudioOutputV1) SendAudio([]byte) error {
	output.mu.Lock()
	output.sendCount++
	output.mu.Unlock()
	return nil
}

func (output *snapshotAudioOutputV1) ClearBuffer() {
	output.mu.Lock()
	output.clearCount++
	output.mu.Unlock()
}

func (output *snapshotAudioOutputV1) Mark(mark string, callback func(string)) error {
	output.mu.Lock()
	output.markCount++
	output.mu.Unlock()
	callback(mark)
	return nil
}

func (output *snapshotAudioOutputV1) markCalls() int {
	output.mu.Lock()
	defer output.mu.Unlock()
	return output.markCount
}
