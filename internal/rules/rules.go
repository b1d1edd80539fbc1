// Package rules is the narrow rules-engine capability the match lifecycle depends on.
// The lifecycle only ever sees opaque board text and plain from/to moves.
package rules

import "errors"

var (
	ErrBadBoard = errors.New("rules: malformed board encoding")
	ErrBadMove  = errors.New("rules: malformed move encoding")
	ErrIllegal  = errors.New("rules: illegal move")
)

// MoveLength is the fixed width of a wire move: from-square then to-square.
const MoveLength = 4

// Color identifies a side.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// StatusKind is the engine's verdict on a position.
type StatusKind uint8

const (
	Ongoing StatusKind = iota
	Won
	Drawn
)

// Status reports terminal state and, while ongoing, whose turn is next.
type Status struct {
	Kind       StatusKind
	SideToMove Color
}

// Move is a plain coordinate move such as e2 to e4.
type Move struct {
	From string
	To   string
}

func (m Move) String() string { return m.From + m.To }

// Board is an immutable position.
type Board interface {
	Encode() string
	SideToMove() Color
	IsLegal(m Move) bool
	// Apply returns the position after m. The receiver is left untouched.
	Apply(m Move) (Board, error)
	Status() Status
}

// Engine decodes boards and moves.
type Engine interface {
	NewBoard() Board
	DecodeBoard(encoded string) (Board, error)
	DecodeMove(encoded string) (Move, error)
}

// ParseMove accepts exactly four characters of the form [a-h][1-8][a-h][1-8].
func ParseMove(s string) (Move, error) {
	if len(s) != MoveLength {
		return Move{}, ErrBadMove
	}
	if !isSquare(s[0:2]) || !isSquare(s[2:4]) {
		return Move{}, ErrBadMove
	}
	return Move{From: s[0:2], To: s[2:4]}, nil
}

func isSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}
