package events

const (
	KindAlignmentStateChanged Kind = "alignment.state_changed"

	KindSegmentHighlighted Kind = "script.segment_highlighted"
	KindScriptPaused       Kind = "script.paused"
	KindScriptResumed      Kind = "script.resumed"
	KindScriptCompleted    Kind = "script.completed"
	KindSegmentsChanged    Kind = "script.segments_changed"
)

// AlignmentStateChanged reports a connection state transition of the
// alignment channel. Reason is empty while the channel is usable.
type AlignmentStateChanged struct {
	Base
	State        string
	Reason       string
	Attempt      int
	ConnectionID string
}

func NewAlignmentStateChanged(state, reason string, attempt int, connectionID string) AlignmentStateChanged {
	return AlignmentStateChanged{
		Base:         NewBase(KindAlignmentStateChanged),
		State:        state,
		Reason:       reason,
		Attempt:      attempt,
		ConnectionID: connectionID,
	}
}

// SegmentHighlighted reports a segment pointer move.
type SegmentHighlighted struct {
	Base
	Index    int
	Previous int
}

func NewSegmentHighlighted(index, previous int) SegmentHighlighted {
	return SegmentHighlighted{Base: NewBase(KindSegmentHighlighted), Index: index, Previous: previous}
}

type ScriptPaused struct {
	Base
	Index int
}

func NewScriptPaused(index int) ScriptPaused {
	return ScriptPaused{Base: NewBase(KindScriptPaused), Index: index}
}

type ScriptResumed struct {
	Base
	Index int
}

func NewScriptResumed(index int) ScriptResumed {
	return ScriptResumed{Base: NewBase(KindScriptResumed), Index: index}
}

type ScriptCompleted struct{ Base }

func NewScriptCompleted() ScriptCompleted {
	return ScriptCompleted{Base: NewBase(KindScriptCompleted)}
}

// SegmentsChanged reports that the script was segmented again, for example
// after sentence mode was toggled.
type SegmentsChanged struct {
	Base
	Count        int
	SentenceMode bool
}

func NewSegmentsChanged(count int, sentenceMode bool) SegmentsChanged {
	return SegmentsChanged{Base: NewBase(KindSegmentsChanged), Count: count, SentenceMode: sentenceMode}
}
