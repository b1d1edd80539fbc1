package rules

import (
	"errors"
	"strings"
	"testing"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func play(t *testing.T, b Board, moves ...string) Board {
	t.Helper()
	eng := NewChessEngine()
	for _, raw := range moves {
		mv, err := eng.DecodeMove(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if !b.IsLegal(mv) {
			t.Fatalf("%s should be legal in %s", raw, b.Encode())
		}
		b, err = b.Apply(mv)
		if err != nil {
			t.Fatalf("apply %s: %v", raw, err)
		}
	}
	return b
}

func TestNewBoardIsStartPosition(t *testing.T) {
	b := NewChessEngine().NewBoard()
	if got := b.Encode(); got != startFEN {
		t.Fatalf("start fen mismatch: %s", got)
	}
	if b.SideToMove() != White {
		t.Fatalf("white moves first")
	}
	if b.Status().Kind != Ongoing {
		t.Fatalf("start position is ongoing")
	}
}

func TestPawnPushSetsEnPassantSquare(t *testing.T) {
	b := play(t, NewChessEngine().NewBoard(), "e2e4")
	fen := b.Encode()
	if !strings.HasPrefix(fen, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3") {
		t.Fatalf("unexpected fen after e2e4: %s", fen)
	}
	if st := b.Status(); st.Kind != Ongoing || st.SideToMove != Black {
		t.Fatalf("expected black to move, got %+v", st)
	}
}

func TestApplyLeavesReceiverUntouched(t *testing.T) {
	start := NewChessEngine().NewBoard()
	_ = play(t, start, "d2d4")
	if start.Encode() != startFEN {
		t.Fatalf("apply mutated the source board")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	eng := NewChessEngine()
	b := eng.NewBoard()
	for _, mv := range []string{"e2e4", "c7c5", "g1f3", "d7d6", "d2d4", "c5d4", "f3d4", "g8f6", "b1c3", "a7a6"} {
		b = play(t, b, mv)
		enc := b.Encode()
		back, err := eng.DecodeBoard(enc)
		if err != nil {
			t.Fatalf("decode %s: %v", enc, err)
		}
		if back.Encode() != enc {
			t.Fatalf("round trip changed board: %s -> %s", enc, back.Encode())
		}
	}
}

func TestScholarsMateIsWon(t *testing.T) {
	b := play(t, NewChessEngine().NewBoard(), "e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7")
	if b.Status().Kind != Won {
		t.Fatalf("expected checkmate, got %+v (%s)", b.Status(), b.Encode())
	}
}

func TestStalemateIsDrawn(t *testing.T) {
	// Sam Loyd's ten-move stalemate.
	b := play(t, NewChessEngine().NewBoard(),
		"e2e3", "a7a5", "d1h5", "a8a6", "h5a5", "h7h5", "h2h4", "a6h6", "a5c7", "f7f6",
		"c7d7", "e8f7", "d7b7", "d8d3", "b7b8", "d3h7", "b8c8", "f7g6", "c8e6")
	if b.Status().Kind != Drawn {
		t.Fatalf("expected stalemate, got %+v (%s)", b.Status(), b.Encode())
	}
}

func TestIllegalMoves(t *testing.T) {
	b := NewChessEngine().NewBoard()
	for _, raw := range []string{"e2e5", "e7e5", "a1a2", "g1g3"} {
		mv, err := ParseMove(raw)
		if err != nil {
			t.Fatalf("parse %s: %v", raw, err)
		}
		if b.IsLegal(mv) {
			t.Fatalf("%s should be illegal", raw)
		}
		if _, err := b.Apply(mv); !errors.Is(err, ErrIllegal) {
			t.Fatalf("apply %s: expected ErrIllegal, got %v", raw, err)
		}
	}
}

func TestPromotionIsNotLegal(t *testing.T) {
	b, err := NewChessEngine().DecodeBoard("8/P6k/8/8/8/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.IsLegal(Move{From: "a7", To: "a8"}) {
		t.Fatalf("promotion cannot be expressed in four characters")
	}
	if !b.IsLegal(Move{From: "a1", To: "b1"}) {
		t.Fatalf("king move should stay legal")
	}
}

func TestFiftyMoveClockDraws(t *testing.T) {
	b, err := NewChessEngine().DecodeBoard("8/8/4k3/8/8/4K3/8/R7 w - - 99 80")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b = play(t, b, "a1a2")
	if b.Status().Kind != Drawn {
		t.Fatalf("expected draw at clock 100, got %+v (%s)", b.Status(), b.Encode())
	}
}

func TestDecodeBoardRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not a board", " " + startFEN, "rnbqkbnr/pppppppp/8/8 w KQkq - 0 1"} {
		if _, err := NewChessEngine().DecodeBoard(raw); !errors.Is(err, ErrBadBoard) {
			t.Fatalf("%q: expected ErrBadBoard, got %v", raw, err)
		}
	}
}

func TestParseMove(t *testing.T) {
	for _, ok := range []string{"e2e4", "a1h8", "h7h8"} {
		if _, err := ParseMove(ok); err != nil {
			t.Fatalf("%s: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "e2e", "e2e4q", "i2e4", "e9e4", "E2E4", "e2-4"} {
		if _, err := ParseMove(bad); !errors.Is(err, ErrBadMove) {
			t.Fatalf("%q: expected ErrBadMove, got %v", bad, err)
		}
	}
}

func TestBareKingsAreDrawn(t *testing.T) {
	b, err := NewChessEngine().DecodeBoard("k7/8/8/8/8/3p4/3K4/8 w - - 0 1")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st := b.Status(); st.Kind != Ongoing {
		t.Fatalf("pawn on board must be ongoing, got %+v", st)
	}
	// Insufficient material ends the match as a draw; no further moves are accepted.
	b = play(t, b, "d2d3")
	if st := b.Status(); st.Kind != Drawn {
		t.Fatalf("king versus king must be drawn, got %+v (%s)", st, b.Encode())
	}
}
