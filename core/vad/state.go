package vad

import "time"

type State int

const (
	Idle State = iota
	Speaking
	SilenceShort
	SilenceLong
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	case SilenceShort:
		return "silence_short"
	case SilenceLong:
		return "silence_long"
	default:
		return "unknown"
	}
}

type EventType string

const (
	EventSpeechStart  EventType = "speech_start"
	EventSilenceShort EventType = "silence_short"
	EventSilenceLong  EventType = "silence_long"
)

// Event is emitted once per state transition.
type Event struct {
	Type EventType
	At   time.Time
	// Silence is the time elapsed since speech ended. Zero for speech_start.
	Silence time.Duration
}
