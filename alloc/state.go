package alloc

// State is the lifecycle state of an Allocator.
//
//	Uninitialized --first entry point--> Initialized --EnterFallback--> Fallback
//	any --Close--> Closed
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateFallback
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateFallback:
		return "fallback"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
