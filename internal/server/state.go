package server

import "fmt"

// State is the phase of the receive loop.
//
//	LISTENING -> CONNECTED -> CLOSED_BY_PEER | ERROR -> LISTENING
type State int32

const (
	// StateListening means no session is active; the listener waits in accept.
	StateListening State = iota
	// StateConnected means a session is receiving records.
	StateConnected
	// StateClosedByPeer means the peer ended the stream.
	StateClosedByPeer
	// StateError means the session ended on a read, timeout, persistence or
	// cancellation failure.
	StateError
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "LISTENING"
	case StateConnected:
		return "CONNECTED"
	case StateClosedByPeer:
		return "CLOSED_BY_PEER"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether s ends a session.
func (s State) Terminal() bool {
	return s == StateClosedByPeer || s == StateError
}
