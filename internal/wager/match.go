package wager

import (
	"encoding/json"
	"fmt"

	"github.com/park285/cheese-wager/internal/escrow"
	"github.com/park285/cheese-wager/internal/identity"
)

// Match is the persisted record of one wager.
type Match struct {
	Challenger identity.Address
	Opponent   identity.Address
	Board      string
	State      State
	Nonce      uint64
	LastMove   uint64
	Start      uint64
	Bet        escrow.Coin
}

func newMatch(challenger, opponent identity.Address, nonce uint64, bet escrow.Coin, board string) Match {
	return Match{
		Challenger: challenger,
		Opponent:   opponent,
		Board:      board,
		State:      AwaitingOpponent{},
		Nonce:      nonce,
		Bet:        bet,
	}
}

// start moves the match into play. White always moves first.
func (m *Match) start(height uint64) {
	m.State = OnGoing{Turn: White}
	m.Start = height
}

type matchJSON struct {
	Challenger identity.Address `json:"challenger"`
	Opponent   identity.Address `json:"opponent"`
	Board      string           `json:"board"`
	State      stateJSON        `json:"state"`
	Nonce      uint64           `json:"nonce"`
	LastMove   uint64           `json:"last_move"`
	Start      uint64           `json:"start"`
	Bet        escrow.Coin      `json:"bet"`
}

func (m Match) MarshalJSON() ([]byte, error) {
	if m.State == nil {
		return nil, fmt.Errorf("wager: match %d has no state", m.Nonce)
	}
	return json.Marshal(matchJSON{
		Challenger: m.Challenger,
		Opponent:   m.Opponent,
		Board:      m.Board,
		State:      encodeState(m.State),
		Nonce:      m.Nonce,
		LastMove:   m.LastMove,
		Start:      m.Start,
		Bet:        m.Bet,
	})
}

func (m *Match) UnmarshalJSON(b []byte) error {
	var raw matchJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	st, err := decodeState(raw.State)
	if err != nil {
		return err
	}
	*m = Match{
		Challenger: raw.Challenger,
		Opponent:   raw.Opponent,
		Board:      raw.Board,
		State:      st,
		Nonce:      raw.Nonce,
		LastMove:   raw.LastMove,
		Start:      raw.Start,
		Bet:        raw.Bet,
	}
	return nil
}
