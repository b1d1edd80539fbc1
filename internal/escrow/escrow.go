// Package escrow validates attached stakes and computes settlement transfers.
// It never touches storage.
package escrow

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/park285/cheese-wager/internal/identity"
	"github.com/park285/cheese-wager/internal/wagererr"
)

// Coin is a single (amount, denom) unit of a fungible asset.
type Coin struct {
	Denom  string       `json:"denom"`
	Amount *uint256.Int `json:"amount"`
}

// NewCoin builds a coin from a small amount.
func NewCoin(amount uint64, denom string) Coin {
	return Coin{Denom: denom, Amount: uint256.NewInt(amount)}
}

// ParseCoin builds a coin from a decimal amount string.
func ParseCoin(amount, denom string) (Coin, error) {
	v, err := uint256.FromDecimal(amount)
	if err != nil {
		return Coin{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return Coin{Denom: denom, Amount: v}, nil
}

// IsZero reports whether the coin carries no value.
func (c Coin) IsZero() bool { return c.Amount == nil || c.Amount.IsZero() }

// Equal compares denom and amount.
func (c Coin) Equal(o Coin) bool {
	if c.Denom != o.Denom {
		return false
	}
	return amountOf(c).Eq(amountOf(o))
}

// Clone returns a deep copy so callers can keep the value across mutations.
func (c Coin) Clone() Coin {
	return Coin{Denom: c.Denom, Amount: amountOf(c).Clone()}
}

func (c Coin) String() string {
	return amountOf(c).Dec() + c.Denom
}

// UnmarshalJSON rejects a missing amount.
func (c *Coin) UnmarshalJSON(b []byte) error {
	type plain Coin
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.Amount == nil {
		return fmt.Errorf("coin %q: missing amount", p.Denom)
	}
	*c = Coin(p)
	return nil
}

func amountOf(c Coin) *uint256.Int {
	if c.Amount == nil {
		return new(uint256.Int)
	}
	return c.Amount
}

// Transfer is a payment instruction executed by the host after the operation commits.
type Transfer struct {
	To     identity.Address `json:"to"`
	Amount Coin             `json:"amount"`
}

// single enforces exactly one non-zero coin.
func single(funds []Coin) (Coin, error) {
	switch {
	case len(funds) == 0:
		return Coin{}, wagererr.InvalidBet(wagererr.MissingBet)
	case len(funds) > 1:
		return Coin{}, wagererr.InvalidBet(wagererr.TooManyCoins)
	case funds[0].IsZero():
		return Coin{}, wagererr.InvalidBet(wagererr.MissingBet)
	}
	return funds[0], nil
}

// ValidateCreation accepts exactly one coin in the configured denom whose amount
// is at least minBet.
func ValidateCreation(funds []Coin, minBet Coin) (Coin, error) {
	bet, err := single(funds)
	if err != nil {
		return Coin{}, err
	}
	if bet.Denom != minBet.Denom {
		return Coin{}, wagererr.InvalidBet(wagererr.WrongDenom)
	}
	if amountOf(bet).Lt(amountOf(minBet)) {
		return Coin{}, wagererr.InvalidBet(wagererr.AmountTooLow)
	}
	return bet.Clone(), nil
}

// ValidateJoin accepts exactly one coin equal to the challenger's stake.
func ValidateJoin(funds []Coin, stake Coin) (Coin, error) {
	bet, err := single(funds)
	if err != nil {
		return Coin{}, err
	}
	if bet.Denom != stake.Denom {
		return Coin{}, wagererr.InvalidBet(wagererr.WrongDenom)
	}
	if !amountOf(bet).Eq(amountOf(stake)) {
		return Coin{}, wagererr.InvalidBet(wagererr.InvalidAmount)
	}
	return bet.Clone(), nil
}

// SettleWin pays the whole pot to the winner.
func SettleWin(stake Coin, winner identity.Address) (Transfer, error) {
	pot, overflow := new(uint256.Int).AddOverflow(amountOf(stake), amountOf(stake))
	if overflow {
		return Transfer{}, fmt.Errorf("settle win: pot of %s overflows", stake)
	}
	return Transfer{To: winner, Amount: Coin{Denom: stake.Denom, Amount: pot}}, nil
}

// SettleDraw returns each side its own stake.
func SettleDraw(stake Coin, challenger, opponent identity.Address) []Transfer {
	return []Transfer{
		{To: challenger, Amount: stake.Clone()},
		{To: opponent, Amount: stake.Clone()},
	}
}
