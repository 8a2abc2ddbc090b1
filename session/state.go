package session

type State int

const (
	Idle State = iota
	Recording
	Transcribing
	Processing
	Interactive
	Accepted
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Processing:
		return "processing"
	case Interactive:
		return "interactive"
	case Accepted:
		return "accepted"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Resting reports whether no session is in flight. A new press starts a
// session directly from any resting state.
func (s State) Resting() bool {
	return s == Idle || s == Accepted || s == Cancelled
}

// Awaiting reports whether the controller is waiting on a service call.
func (s State) Awaiting() bool {
	return s == Transcribing || s == Processing
}
