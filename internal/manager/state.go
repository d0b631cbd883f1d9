package manager

// State is the lifecycle position of a Manager.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	// Failed setups may be retried.
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
