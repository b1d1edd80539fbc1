package rules

import (
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// fiftyMoveLimit is the half-move clock value at which a position is drawn outright.
const fiftyMoveLimit = 100

// ChessEngine implements Engine with FEN boards and UCI coordinate moves.
// Promotions have no 4-character encoding, so a pawn move onto the last rank is never legal.
type ChessEngine struct{}

func NewChessEngine() ChessEngine { return ChessEngine{} }

func (ChessEngine) NewBoard() Board {
	return &chessBoard{game: nchess.NewGame()}
}

func (ChessEngine) DecodeBoard(encoded string) (Board, error) {
	if strings.TrimSpace(encoded) != encoded || len(strings.Fields(encoded)) != 6 {
		return nil, ErrBadBoard
	}
	opt, err := nchess.FEN(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBoard, err)
	}
	return &chessBoard{game: nchess.NewGame(opt)}, nil
}

func (ChessEngine) DecodeMove(encoded string) (Move, error) {
	return ParseMove(encoded)
}

type chessBoard struct {
	game *nchess.Game
}

func (b *chessBoard) Encode() string { return b.game.FEN() }

func (b *chessBoard) SideToMove() Color {
	if b.game.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

func (b *chessBoard) IsLegal(m Move) bool {
	if b.game.Outcome() != nchess.NoOutcome {
		return false
	}
	if b.isPromotion(m) {
		return false
	}
	clone := b.game.Clone()
	return clone.PushNotationMove(m.String(), nchess.UCINotation{}, nil) == nil
}

func (b *chessBoard) Apply(m Move) (Board, error) {
	if !b.IsLegal(m) {
		return nil, ErrIllegal
	}
	next := b.game.Clone()
	if err := next.PushNotationMove(m.String(), nchess.UCINotation{}, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegal, err)
	}
	return &chessBoard{game: next}, nil
}

func (b *chessBoard) Status() Status {
	switch b.game.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		return Status{Kind: Won, SideToMove: b.SideToMove()}
	case nchess.Draw:
		return Status{Kind: Drawn, SideToMove: b.SideToMove()}
	}
	if halfMoveClock(b.game.FEN()) >= fiftyMoveLimit {
		return Status{Kind: Drawn, SideToMove: b.SideToMove()}
	}
	return Status{Kind: Ongoing, SideToMove: b.SideToMove()}
}

// isPromotion reports whether m pushes a pawn onto its last rank.
func (b *chessBoard) isPromotion(m Move) bool {
	if m.To[1] != '8' && m.To[1] != '1' {
		return false
	}
	for sq, piece := range b.game.Position().Board().SquareMap() {
		if sq.String() == m.From {
			return piece.Type() == nchess.Pawn
		}
	}
	return false
}

func halfMoveClock(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 5 {
		return 0
	}
	n, err := strconv.Atoi(fields[4])
	if err != nil {
		return 0
	}
	return n
}
