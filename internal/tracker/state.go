package tracker

// State is the store's map lifecycle.
//
//	Uninitialized -> AwaitingLocation -> Ready
//	                                  -> Degraded
type State int

const (
	StateUninitialized State = iota
	StateAwaitingLocation
	StateReady
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingLocation:
		return "awaiting_location"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear by name in JSON responses.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
