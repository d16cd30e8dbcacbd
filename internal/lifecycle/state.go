// Package lifecycle tracks one submitted intent from signature request to a
// terminal outcome and guards lifecycle slots against concurrent submissions.
package lifecycle

// State is a lifecycle phase.
type State int

const (
	Idle State = iota
	AwaitingSignature
	Submitted
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingSignature:
		return "awaiting_signature"
	case Submitted:
		return "submitted"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Confirmed || s == Failed
}

var transitions = map[State][]State{
	Idle:              {AwaitingSignature, Failed},
	AwaitingSignature: {Submitted, Failed},
	Submitted:         {Confirmed, Failed},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
