package alignment

import "fmt"

type ConnectionState int

const (
	Connecting ConnectionState = iota
	Open
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

type CloseReason string

const (
	ReasonNone               CloseReason = ""
	ReasonNotStarted         CloseReason = "not_started"
	ReasonClosedByClient     CloseReason = "closed_by_client"
	ReasonDisconnected       CloseReason = "disconnected"
	ReasonReconnectExhausted CloseReason = "reconnect_exhausted"
	ReasonProtocolError      CloseReason = "protocol_error"
)

// Status is a snapshot of the channel state machine.
type Status struct {
	State  ConnectionState
	Reason CloseReason
	// Attempt is the reconnect attempt in progress, zero for the first dial.
	Attempt      int
	ConnectionID string
}

// Disconnected reports whether the channel stopped without being asked to.
func (s Status) Disconnected() bool {
	if s.State != Closed {
		return false
	}
	return s.Reason != ReasonClosedByClient && s.Reason != ReasonNotStarted
}

func (s Status) String() string {
	if s.State == Closed && s.Reason != ReasonNone {
		return fmt.Sprintf("%s(%s)", s.State, s.Reason)
	}
	return s.State.String()
}
