package chain

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/cheese-wager/internal/bank"
	"github.com/park285/cheese-wager/internal/escrow"
	"github.com/park285/cheese-wager/internal/identity"
	"github.com/park285/cheese-wager/internal/ledger"
	"github.com/park285/cheese-wager/internal/obslog"
	"github.com/park285/cheese-wager/internal/wager"
	"github.com/park285/cheese-wager/internal/wagererr"
)

// Account is a funded genesis account.
type Account struct {
	Address string
	Coins   []escrow.Coin
}

// Genesis is the initial ledger state.
type Genesis struct {
	Admin    string
	MinBet   escrow.Coin
	Accounts []Account
}

// ApplyGenesis mints balances and initializes the contract when the ledger is
// still empty. It reports false without touching anything otherwise.
func (h *Host) ApplyGenesis(ctx context.Context, g Genesis) (bool, error) {
	admin, err := identity.ValidateAddress(g.Admin)
	if err != nil {
		return false, fmt.Errorf("genesis admin %q: %w", g.Admin, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	applied := false
	err = h.store.Update(ctx, func(tx ledger.Tx) error {
		if _, err := wager.LoadConfig(ctx, tx); err == nil {
			return nil
		} else if !errors.Is(err, wagererr.ErrNotInitialized) {
			return err
		}
		for _, acc := range g.Accounts {
			addr, err := identity.ValidateAddress(acc.Address)
			if err != nil {
				return fmt.Errorf("genesis account %q: %w", acc.Address, err)
			}
			if err := bank.Mint(ctx, tx, addr, acc.Coins); err != nil {
				return err
			}
		}
		if _, err := h.contract.Handle(ctx, tx,
			wager.Env{BlockHeight: 0, Contract: h.address},
			wager.MessageInfo{Sender: admin},
			wager.Instantiate{MinBet: g.MinBet},
		); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		obslog.L().Info("wager_genesis",
			zap.String("admin", admin.String()),
			zap.String("min_bet", g.MinBet.String()),
			zap.Int("accounts", len(g.Accounts)),
		)
	}
	return applied, nil
}
