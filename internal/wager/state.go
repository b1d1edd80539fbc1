package wager

import "fmt"

// Side is the color whose turn it is.
type Side uint8

const (
	White Side = iota
	Black
)

func (s Side) String() string {
	if s == White {
		return "white"
	}
	return "black"
}

// State is the lifecycle state of a match. The variant set is closed:
// AwaitingOpponent, OnGoing, Won and Drawn.
type State interface {
	isState()
	String() string
}

type AwaitingOpponent struct{}

type OnGoing struct {
	Turn Side
}

type Won struct{}

type Drawn struct{}

func (AwaitingOpponent) isState() {}
func (OnGoing) isState()          {}
func (Won) isState()              {}
func (Drawn) isState()            {}

func (AwaitingOpponent) String() string { return "awaiting_opponent" }
func (s OnGoing) String() string        { return "on_going_" + s.Turn.String() }
func (Won) String() string              { return "won" }
func (Drawn) String() string            { return "drawn" }

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s State) bool {
	switch s.(type) {
	case Won, Drawn:
		return true
	default:
		return false
	}
}

type stateJSON struct {
	Kind string `json:"kind"`
	Turn string `json:"turn,omitempty"`
}

func encodeState(s State) stateJSON {
	switch v := s.(type) {
	case AwaitingOpponent:
		return stateJSON{Kind: "awaiting_opponent"}
	case OnGoing:
		return stateJSON{Kind: "on_going", Turn: v.Turn.String()}
	case Won:
		return stateJSON{Kind: "won"}
	case Drawn:
		return stateJSON{Kind: "drawn"}
	default:
		panic(fmt.Sprintf("wager: unknown state %T", s))
	}
}

func decodeState(raw stateJSON) (State, error) {
	switch raw.Kind {
	case "awaiting_opponent":
		return AwaitingOpponent{}, nil
	case "on_going":
		switch raw.Turn {
		case "white":
			return OnGoing{Turn: White}, nil
		case "black":
			return OnGoing{Turn: Black}, nil
		}
		return nil, fmt.Errorf("unknown turn %q", raw.Turn)
	case "won":
		return Won{}, nil
	case "drawn":
		return Drawn{}, nil
	}
	return nil, fmt.Errorf("unknown state %q", raw.Kind)
}

// StateName is the stable external name of a state's kind.
func StateName(s State) string { return encodeState(s).Kind }

// StateTurn is the side to move, or "" when the match is not ongoing.
func StateTurn(s State) string { return encodeState(s).Turn }

