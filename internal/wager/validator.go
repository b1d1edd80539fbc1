package wager

import (
	"github.com/park285/cheese-wager/internal/rules"
	"github.com/park285/cheese-wager/internal/wagererr"
)

// moveValidator runs decode, legality, apply and status against the engine.
type moveValidator struct {
	engine rules.Engine
}

func (v moveValidator) play(board, move string) (rules.Board, State, error) {
	b, err := v.engine.DecodeBoard(board)
	if err != nil {
		return nil, nil, wagererr.ErrInvalidBoardEncoding
	}
	mv, err := v.engine.DecodeMove(move)
	if err != nil {
		return nil, nil, wagererr.ErrInvalidMoveEncoding
	}
	if !b.IsLegal(mv) {
		return nil, nil, wagererr.ErrIllegalMove
	}
	next, err := b.Apply(mv)
	if err != nil {
		return nil, nil, wagererr.ErrIllegalMove
	}
	return next, stateFromStatus(next.Status()), nil
}

func stateFromStatus(st rules.Status) State {
	switch st.Kind {
	case rules.Won:
		return Won{}
	case rules.Drawn:
		return Drawn{}
	}
	if st.SideToMove == rules.White {
		return OnGoing{Turn: White}
	}
	return OnGoing{Turn: Black}
}
