package alignment

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	messageInitScript = "init_script"
	messageTranscript = "transcript"
	messageVAD        = "vad"
)

type VADStatus string

const (
	VADSpeechStart  VADStatus = "speech_start"
	VADSilenceStart VADStatus = "silence_start"
)

type SilenceDuration string

const (
	SilenceNone  SilenceDuration = ""
	SilenceShort SilenceDuration = "short"
	SilenceLong  SilenceDuration = "long"
)

type initScriptMessage struct {
	Type         string `json:"type"`
	Script       string `json:"script"`
	SentenceMode bool   `json:"sentenceMode"`
}

type transcriptMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type vadMessage struct {
	Type   string          `json:"type"`
	Status VADStatus       `json:"status"`
	Dur    SilenceDuration `json:"dur,omitempty"`
}

type EventKind string

const (
	EventHighlight EventKind = "highlight"
	EventPause     EventKind = "pause"
	EventResume    EventKind = "resume"
	EventCompleted EventKind = "completed"
)

// Event is a server originated alignment event.
type Event struct {
	Kind EventKind
	// Index is the highlighted segment, only meaningful for EventHighlight.
	Index int
}

var (
	ErrMalformedEvent = errors.New("malformed alignment event")
	ErrUnknownEvent   = errors.New("unknown alignment event")
)

func decodeEvent(data []byte) (Event, error) {
	var raw struct {
		Event string `json:"event"`
		Index *int   `json:"index"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	switch kind := EventKind(raw.Event); kind {
	case EventHighlight:
		if raw.Index == nil {
			return Event{}, fmt.Errorf("%w: highlight without index", ErrMalformedEvent)
		}
		return Event{Kind: kind, Index: *raw.Index}, nil
	case EventPause, EventResume, EventCompleted:
		return Event{Kind: kind}, nil
	case "":
		return Event{}, fmt.Errorf("%w: missing event field", ErrMalformedEvent)
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, raw.Event)
	}
}
