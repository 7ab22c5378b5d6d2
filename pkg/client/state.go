package client

// State is the lifecycle stage of a Controller's connection.
type State int32

// Connection states.
const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
