package session

import "fmt"

// State is the streaming state of a session.
type State int32

const (
	StateStopped State = iota
	StatePaused
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePaused:
		return "paused"
	case StateStreaming:
		return "streaming"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}
