package wager

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/park285/cheese-wager/internal/escrow"
	"github.com/park285/cheese-wager/internal/identity"
	"github.com/park285/cheese-wager/internal/ledger"
	"github.com/park285/cheese-wager/internal/wagererr"
)

const (
	keyContractInfo     = "contract_info"
	keyAdmin            = "contract_admin"
	keyMinBet           = "min_bet"
	keyNextNonce        = "next_nonce"
	prefixMatches       = "matches/"
	prefixPlayerMatches = "player_matches/"
	prefixMatchIDs      = "match_ids/"
)

func matchKey(id identity.MatchID) string { return prefixMatches + id.String() }

func playerMatchKey(player identity.Address, id identity.MatchID) string {
	return prefixPlayerMatches + player.String() + "/" + id.String()
}

// nonceKey is zero padded so lexical order is creation order.
func nonceKey(nonce uint64) string { return fmt.Sprintf("%s%020d", prefixMatchIDs, nonce) }

// ContractInfo names the deployed code and its version.
type ContractInfo struct {
	Contract string `json:"contract"`
	Version  string `json:"version"`
}

// Config is the process-wide configuration created at initialization.
type Config struct {
	Info      ContractInfo
	Admin     identity.Address
	MinBet    escrow.Coin
	NextNonce uint64
}

func getJSON(ctx context.Context, r ledger.Reader, key string, out any) (bool, error) {
	raw, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func setJSON(tx ledger.Tx, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	tx.Set(key, raw)
	return nil
}

// LoadConfig fails with NotInitialized before the first Instantiate.
func LoadConfig(ctx context.Context, r ledger.Reader) (Config, error) {
	var cfg Config
	ok, err := getJSON(ctx, r, keyContractInfo, &cfg.Info)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, wagererr.ErrNotInitialized
	}
	admin, _, err := r.Get(ctx, keyAdmin)
	if err != nil {
		return Config{}, err
	}
	cfg.Admin = identity.Address(admin)
	if _, err := getJSON(ctx, r, keyMinBet, &cfg.MinBet); err != nil {
		return Config{}, err
	}
	if cfg.NextNonce, err = loadNonce(ctx, r); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadNonce(ctx context.Context, r ledger.Reader) (uint64, error) {
	raw, ok, err := r.Get(ctx, keyNextNonce)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", keyNextNonce, err)
	}
	return n, nil
}

func saveNonce(tx ledger.Tx, n uint64) {
	tx.Set(keyNextNonce, []byte(strconv.FormatUint(n, 10)))
}

// insertMatch writes the match and both indexes together.
func insertMatch(tx ledger.Tx, id identity.MatchID, m Match) error {
	if err := saveMatch(tx, id, m); err != nil {
		return err
	}
	tx.Set(playerMatchKey(m.Challenger, id), []byte{'1'})
	tx.Set(playerMatchKey(m.Opponent, id), []byte{'1'})
	tx.Set(nonceKey(m.Nonce), []byte(id.String()))
	return nil
}

func saveMatch(tx ledger.Tx, id identity.MatchID, m Match) error {
	return setJSON(tx, matchKey(id), m)
}

// removeMatch deletes the match and both indexes together.
func removeMatch(tx ledger.Tx, id identity.MatchID, m Match) {
	tx.Delete(matchKey(id))
	tx.Delete(playerMatchKey(m.Challenger, id))
	tx.Delete(playerMatchKey(m.Opponent, id))
	tx.Delete(nonceKey(m.Nonce))
}

func lookupMatch(ctx context.Context, r ledger.Reader, id identity.MatchID) (Match, error) {
	var m Match
	ok, err := getJSON(ctx, r, matchKey(id), &m)
	if err != nil {
		return Match{}, err
	}
	if !ok {
		return Match{}, wagererr.ErrUnknownMatch
	}
	return m, nil
}

// Entry pairs a match with its identifier.
type Entry struct {
	ID    identity.MatchID
	Match Match
}

const (
	DefaultListLimit = 30
	MaxListLimit     = 100
)

// GetMatch looks a match up by its hex identifier.
func GetMatch(ctx context.Context, r ledger.Reader, rawID string) (Entry, error) {
	id, err := identity.ParseMatchID(rawID)
	if err != nil {
		return Entry{}, err
	}
	m, err := lookupMatch(ctx, r, id)
	if err != nil {
		return Entry{}, err
	}
	return Entry{ID: id, Match: m}, nil
}

// PlayerMatches lists the open matches a player takes part in, in creation order.
func PlayerMatches(ctx context.Context, r ledger.Reader, player string) ([]Entry, error) {
	addr, err := identity.ValidateAddress(player)
	if err != nil {
		return nil, err
	}
	kvs, err := r.Prefix(ctx, prefixPlayerMatches+addr.String()+"/")
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(kvs))
	for _, kv := range kvs {
		hexID := kv.Key[strings.LastIndexByte(kv.Key, '/')+1:]
		e, err := GetMatch(ctx, r, hexID)
		if err != nil {
			return nil, fmt.Errorf("player index %s: %w", kv.Key, err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Match.Nonce < out[j].Match.Nonce })
	return out, nil
}

// ListMatches pages through open matches in creation order. startAfter is an
// exclusive nonce bound; nil starts from the beginning.
func ListMatches(ctx context.Context, r ledger.Reader, startAfter *uint64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	kvs, err := r.Prefix(ctx, prefixMatchIDs)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, limit)
	for _, kv := range kvs {
		if startAfter != nil {
			nonce, err := strconv.ParseUint(strings.TrimPrefix(kv.Key, prefixMatchIDs), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("nonce index %s: %w", kv.Key, err)
			}
			if nonce <= *startAfter {
				continue
			}
		}
		e, err := GetMatch(ctx, r, string(kv.Value))
		if err != nil {
			return nil, fmt.Errorf("nonce index %s: %w", kv.Key, err)
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
