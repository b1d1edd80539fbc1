package config

import (
	"errors"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/park285/cheese-wager/internal/chain"
	"github.com/park285/cheese-wager/internal/escrow"
)

type genesisCoin struct {
	Denom  string `yaml:"denom"`
	Amount string `yaml:"amount"`
}

type genesisAccount struct {
	Address string        `yaml:"address"`
	Coins   []genesisCoin `yaml:"coins"`
}

type genesisFile struct {
	Admin    string           `yaml:"admin"`
	MinBet   genesisCoin      `yaml:"min_bet"`
	Accounts []genesisAccount `yaml:"accounts"`
}

// LoadGenesis reads a genesis yaml file.
func LoadGenesis(path string) (chain.Genesis, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return chain.Genesis{}, fmt.Errorf("read genesis: %w", err)
	}
	return ParseGenesis(b)
}

func ParseGenesis(b []byte) (chain.Genesis, error) {
	var raw genesisFile
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return chain.Genesis{}, fmt.Errorf("parse genesis: %w", err)
	}
	if raw.Admin == "" {
		return chain.Genesis{}, errors.New("genesis: admin is required")
	}
	minBet, err := raw.MinBet.coin()
	if err != nil {
		return chain.Genesis{}, fmt.Errorf("genesis min_bet: %w", err)
	}

	g := chain.Genesis{Admin: raw.Admin, MinBet: minBet}
	seen := make(map[string]bool, len(raw.Accounts))
	for _, acc := range raw.Accounts {
		if seen[acc.Address] {
			return chain.Genesis{}, fmt.Errorf("genesis: duplicate account %q", acc.Address)
		}
		seen[acc.Address] = true

		coins := make([]escrow.Coin, 0, len(acc.Coins))
		for _, c := range acc.Coins {
			coin, err := c.coin()
			if err != nil {
				return chain.Genesis{}, fmt.Errorf("genesis account %s: %w", acc.Address, err)
			}
			coins = append(coins, coin)
		}
		g.Accounts = append(g.Accounts, chain.Account{Address: acc.Address, Coins: coins})
	}
	return g, nil
}

func (c genesisCoin) coin() (escrow.Coin, error) {
	if c.Denom == "" {
		return escrow.Coin{}, errors.New("denom is required")
	}
	return escrow.ParseCoin(c.Amount, c.Denom)
}
