package monitor

// State is the position of the supervision loop.
type State int32

const (
	StateConnecting State = iota
	StateSubscribed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
