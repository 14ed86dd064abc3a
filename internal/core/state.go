package core

// ConnState is the local client's connection state. One instance at a time:
// a client is never connected to two channels simultaneously.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	// StateFailed is transient and must be explicitly acknowledged before
	// the next connect attempt; it never auto-retries.
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
