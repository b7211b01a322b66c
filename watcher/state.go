package watcher

// State of the connection to the mailbox provider. The supervisor is the
// only writer; transitions are the only mutator of supervisor-visible
// health.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateWatching
	StateReconnecting
	StateShuttingDown
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateWatching:
		return "watching"
	case StateReconnecting:
		return "reconnecting"
	case StateShuttingDown:
		return "shutting down"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
