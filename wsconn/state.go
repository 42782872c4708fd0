package wsconn

// Connection lifecycle state.
type State int

const (
	// Created, not connected. Connect can be called.
	StateIdle State = iota
	// Connect has been called and the transport is opening.
	StateConnecting
	// The transport is open. Frames are dispatched and pings are emitted.
	StateOpen
	// Close has been called and the transport is closing.
	StateClosing
	// Terminal state. The connection cannot be reused.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
