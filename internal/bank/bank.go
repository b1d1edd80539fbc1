// Package bank keeps per-account balances on the ledger and moves them.
package bank

import (
	"context"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/park285/cheese-wager/internal/escrow"
	"github.com/park285/cheese-wager/internal/identity"
	"github.com/park285/cheese-wager/internal/ledger"
	"github.com/park285/cheese-wager/internal/wagererr"
)

const prefixBank = "bank/"

func balanceKey(addr identity.Address, denom string) string {
	return prefixBank + addr.String() + "/" + denom
}

// Balance returns the amount of denom held by addr. Unknown accounts hold zero.
func Balance(ctx context.Context, r ledger.Reader, addr identity.Address, denom string) (*uint256.Int, error) {
	raw, ok, err := r.Get(ctx, balanceKey(addr, denom))
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(string(raw))
	if err != nil {
		return nil, fmt.Errorf("balance %s/%s: %w", addr, denom, err)
	}
	return v, nil
}

// Balances lists every non-zero denom held by addr, sorted by denom.
func Balances(ctx context.Context, r ledger.Reader, addr identity.Address) ([]escrow.Coin, error) {
	prefix := prefixBank + addr.String() + "/"
	kvs, err := r.Prefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]escrow.Coin, 0, len(kvs))
	for _, kv := range kvs {
		c, err := escrow.ParseCoin(string(kv.Value), strings.TrimPrefix(kv.Key, prefix))
		if err != nil {
			return nil, fmt.Errorf("balance %s: %w", kv.Key, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func setBalance(tx ledger.Tx, addr identity.Address, denom string, v *uint256.Int) {
	if v.IsZero() {
		tx.Delete(balanceKey(addr, denom))
		return
	}
	tx.Set(balanceKey(addr, denom), []byte(v.Dec()))
}

// Send moves coins from one account to another. It fails with InsufficientFunds
// when from cannot cover any one of them.
func Send(ctx context.Context, tx ledger.Tx, from, to identity.Address, coins []escrow.Coin) error {
	for _, c := range coins {
		if c.IsZero() {
			continue
		}
		have, err := Balance(ctx, tx, from, c.Denom)
		if err != nil {
			return err
		}
		if have.Lt(c.Amount) {
			return wagererr.ErrInsufficientFunds
		}
		setBalance(tx, from, c.Denom, new(uint256.Int).Sub(have, c.Amount))
		if err := credit(ctx, tx, to, c); err != nil {
			return err
		}
	}
	return nil
}

// Mint creates coins out of nothing. Only genesis uses it.
func Mint(ctx context.Context, tx ledger.Tx, to identity.Address, coins []escrow.Coin) error {
	for _, c := range coins {
		if c.IsZero() {
			continue
		}
		if err := credit(ctx, tx, to, c); err != nil {
			return err
		}
	}
	return nil
}

func credit(ctx context.Context, tx ledger.Tx, to identity.Address, c escrow.Coin) error {
	have, err := Balance(ctx, tx, to, c.Denom)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(have, c.Amount)
	if overflow {
		return fmt.Errorf("credit %s to %s: balance overflows", c, to)
	}
	setBalance(tx, to, c.Denom, sum)
	return nil
}
