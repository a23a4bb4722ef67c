package events

const (
	// KindPromptRequested identifies a request to speak a segment aloud.
	KindPromptRequested Kind = "prompt.requested"
	// KindPromptStarted identifies prompt audio reaching the output.
	KindPromptStarted Kind = "prompt.started"
	// KindPromptEnded identifies prompt audio that finished playing.
	KindPromptEnded Kind = "prompt.ended"
	// KindPromptStopped identifies an active prompt being abandoned.
	KindPromptStopped Kind = "prompt.stopped"
	// KindPromptFailed identifies a prompt that could not be fetched or played.
	KindPromptFailed Kind = "prompt.failed"
)

// PromptRequested carries the segment a prompt was requested for.
type PromptRequested struct {
	Base
	Index int
}

// NewPromptRequested creates a prompt requested event.
func NewPromptRequested(index int) PromptRequested {
	return PromptRequested{Base: NewBase(KindPromptRequested), Index: index}
}

// PromptStarted marks the start of prompt playback.
type PromptStarted struct {
	Base
	Index int
}

// NewPromptStarted creates a prompt started event.
func NewPromptStarted(index int) PromptStarted {
	return PromptStarted{Base: NewBase(KindPromptStarted), Index: index}
}

// PromptEnded marks the end of prompt playback.
type PromptEnded struct {
	Base
	Index int
}

// NewPromptEnded creates a prompt ended event.
func NewPromptEnded(index int) PromptEnded {
	return PromptEnded{Base: NewBase(KindPromptEnded), Index: index}
}

// PromptStopped marks a prompt abandoned because of speech or a script event.
type PromptStopped struct {
	Base
	Reason string
}

// NewPromptStopped creates a prompt stopped event.
func NewPromptStopped(reason string) PromptStopped {
	return PromptStopped{Base: NewBase(KindPromptStopped), Reason: reason}
}

// PromptFailed carries the error that ended a prompt request. It is never
// fatal to the session.
type PromptFailed struct {
	Base
	Index int
	Err   error
}

// NewPromptFailed creates a prompt failed event.
func NewPromptFailed(index int, err error) PromptFailed {
	return PromptFailed{Base: NewBase(KindPromptFailed), Index: index, Err: err}
}
