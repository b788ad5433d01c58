package motorlink

import "fmt"

// State is the connection state of a link.
type State int

// Connection states
const (
	// StateDisconnected has no variant selected.
	StateDisconnected State = iota
	// StatePairing answered a handshake and waits for the first frame.
	StatePairing
	// StateStreamingParse decodes incoming frames.
	StateStreamingParse
	// StateStreamingPeriodic re-requests data, passed through immediately.
	StateStreamingPeriodic
	// StateError reports a persistent protocol mismatch for one tick.
	StateError
)

var stateNames = map[State]string{
	StateDisconnected:      "Disconnected",
	StatePairing:           "Pairing",
	StateStreamingParse:    "StreamingParse",
	StateStreamingPeriodic: "StreamingPeriodic",
	StateError:             "Error",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// IsStreaming indicates frames are flowing.
func (s State) IsStreaming() bool {
	return s == StateStreamingParse || s == StateStreamingPeriodic
}

// IsConnected indicates a variant is selected.
func (s State) IsConnected() bool {
	return s == StatePairing || s.IsStreaming()
}

// StateChange records a transition of a link.
type StateChange struct {
	Link int
	From State
	To   State
}

// String implements fmt.Stringer.
func (c *StateChange) String() string {
	return fmt.Sprintf("link %d: %s -> %s", c.Link, c.From, c.To)
}

// StateNotifier is called on every state transition.
type StateNotifier interface {
	StateChanged(*StateChange)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(*StateChange)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(c *StateChange) {
	f(c)
}
