package wager

import (
	"github.com/park285/cheese-wager/internal/escrow"
	"github.com/park285/cheese-wager/internal/identity"
)

// Msg is one operation submitted to the contract.
type Msg interface {
	Action() string
}

// Instantiate records the caller as administrator and sets the minimum bet.
type Instantiate struct {
	MinBet escrow.Coin
}

type CreateMatch struct {
	Opponent string
}

type AbortMatch struct {
	MatchID string
}

type JoinMatch struct {
	MatchID string
}

type MakeMove struct {
	MatchID string
	Move    string
}

// Migrate re-records the contract version. Administrator only.
type Migrate struct{}

func (Instantiate) Action() string { return "instantiate" }
func (CreateMatch) Action() string { return "create_match" }
func (AbortMatch) Action() string  { return "abort_match" }
func (JoinMatch) Action() string   { return "join_match" }
func (MakeMove) Action() string    { return "make_move" }
func (Migrate) Action() string     { return "migrate" }

// Env is the execution context stamped by the host.
type Env struct {
	BlockHeight uint64
	Contract    identity.Address
}

// MessageInfo is the authenticated sender and the funds it attached.
type MessageInfo struct {
	Sender identity.Address
	Funds  []escrow.Coin
}
