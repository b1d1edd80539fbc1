// Package wager is the match lifecycle: create, join, abort and move, with the
// stake held in escrow until a match ends.
//
// Handle runs one operation against a staged ledger transaction. On error the
// caller discards the transaction, so every rejection leaves storage untouched.
package wager

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/cheese-wager/internal/escrow"
	"github.com/park285/cheese-wager/internal/identity"
	"github.com/park285/cheese-wager/internal/ledger"
	"github.com/park285/cheese-wager/internal/rules"
	"github.com/park285/cheese-wager/internal/wagererr"
)

const (
	ContractName    = "cheese-wager"
	ContractVersion = "1.0.0"
)

// Contract executes operations. It holds no mutable state of its own.
type Contract struct {
	engine    rules.Engine
	validator moveValidator
	version   string
}

type Option func(*Contract)

// WithVersion overrides the code version recorded by Instantiate and Migrate.
func WithVersion(v string) Option {
	return func(c *Contract) { c.version = v }
}

func New(engine rules.Engine, opts ...Option) *Contract {
	c := &Contract{engine: engine, validator: moveValidator{engine: engine}, version: ContractVersion}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Contract) Version() string { return c.version }

// Handle dispatches msg.
func (c *Contract) Handle(ctx context.Context, tx ledger.Tx, env Env, info MessageInfo, msg Msg) (Response, error) {
	if in, ok := msg.(Instantiate); ok {
		return c.instantiate(ctx, tx, info, in)
	}
	cfg, err := LoadConfig(ctx, tx)
	if err != nil {
		return Response{}, err
	}
	switch m := msg.(type) {
	case CreateMatch:
		return c.createMatch(tx, cfg, info, m)
	case AbortMatch:
		return c.abortMatch(ctx, tx, info, m)
	case JoinMatch:
		return c.joinMatch(ctx, tx, env, info, m)
	case MakeMove:
		return c.makeMove(ctx, tx, env, info, m)
	case Migrate:
		return c.migrate(tx, cfg, info)
	default:
		return Response{}, fmt.Errorf("wager: unsupported message %T", msg)
	}
}

func (c *Contract) instantiate(ctx context.Context, tx ledger.Tx, info MessageInfo, msg Instantiate) (Response, error) {
	if _, ok, err := tx.Get(ctx, keyContractInfo); err != nil {
		return Response{}, err
	} else if ok {
		return Response{}, wagererr.ErrAlreadyInitialized
	}
	if msg.MinBet.Denom == "" {
		return Response{}, wagererr.InvalidBet(wagererr.WrongDenom)
	}
	minBet := msg.MinBet.Clone()

	if err := setJSON(tx, keyContractInfo, ContractInfo{Contract: ContractName, Version: c.version}); err != nil {
		return Response{}, err
	}
	tx.Set(keyAdmin, []byte(info.Sender))
	if err := setJSON(tx, keyMinBet, minBet); err != nil {
		return Response{}, err
	}
	saveNonce(tx, 0)

	return Response{}.
		addAttribute("action", msg.Action()).
		addAttribute("owner", info.Sender.String()), nil
}

func (c *Contract) createMatch(tx ledger.Tx, cfg Config, info MessageInfo, msg CreateMatch) (Response, error) {
	challenger := info.Sender
	opponent, err := identity.ValidateAddress(msg.Opponent)
	if err != nil {
		return Response{}, err
	}
	if challenger == opponent {
		return Response{}, wagererr.ErrInvalidOpponent
	}
	bet, err := escrow.ValidateCreation(info.Funds, cfg.MinBet)
	if err != nil {
		return Response{}, err
	}

	nonce := cfg.NextNonce
	id := identity.DeriveMatchID(challenger, opponent, nonce)
	m := newMatch(challenger, opponent, nonce, bet, c.engine.NewBoard().Encode())

	if err := insertMatch(tx, id, m); err != nil {
		return Response{}, err
	}
	saveNonce(tx, nonce+1)

	return newResponse(msg.Action(), challenger).addEvent(
		newEvent(EventMatchCreated).
			add("challenger", challenger.String()).
			add("opponent", opponent.String()).
			add("match_id", id.String()),
	), nil
}

// abortMatch removes a match nobody joined. The challenger's stake stays with
// the contract: no transfer is issued.
func (c *Contract) abortMatch(ctx context.Context, tx ledger.Tx, info MessageInfo, msg AbortMatch) (Response, error) {
	id, err := identity.ParseMatchID(msg.MatchID)
	if err != nil {
		return Response{}, err
	}
	m, err := lookupMatch(ctx, tx, id)
	if err != nil {
		return Response{}, err
	}
	if info.Sender != m.Challenger {
		return Response{}, wagererr.ErrNotMatchCreator
	}
	if _, ok := m.State.(AwaitingOpponent); !ok {
		return Response{}, wagererr.ErrNotAwaitingOpponent
	}

	removeMatch(tx, id, m)

	return newResponse(msg.Action(), info.Sender).addEvent(
		newEvent(EventMatchAborted).add("match_id", id.String()),
	), nil
}

func (c *Contract) joinMatch(ctx context.Context, tx ledger.Tx, env Env, info MessageInfo, msg JoinMatch) (Response, error) {
	id, err := identity.ParseMatchID(msg.MatchID)
	if err != nil {
		return Response{}, err
	}
	m, err := lookupMatch(ctx, tx, id)
	if err != nil {
		return Response{}, err
	}
	if info.Sender != m.Opponent {
		return Response{}, wagererr.ErrInvalidOpponent
	}
	if _, err := escrow.ValidateJoin(info.Funds, m.Bet); err != nil {
		return Response{}, err
	}
	if _, ok := m.State.(AwaitingOpponent); !ok {
		return Response{}, wagererr.ErrNotAwaitingOpponent
	}

	m.start(env.BlockHeight)
	if err := saveMatch(tx, id, m); err != nil {
		return Response{}, err
	}

	return newResponse(msg.Action(), info.Sender).addEvent(
		newEvent(EventMatchStarted).add("match_id", id.String()),
	), nil
}

func (c *Contract) makeMove(ctx context.Context, tx ledger.Tx, env Env, info MessageInfo, msg MakeMove) (Response, error) {
	player := info.Sender
	id, err := identity.ParseMatchID(msg.MatchID)
	if err != nil {
		return Response{}, err
	}
	if len(msg.Move) != rules.MoveLength {
		return Response{}, wagererr.ErrInvalidMoveEncoding
	}
	m, err := lookupMatch(ctx, tx, id)
	if err != nil {
		return Response{}, err
	}
	if err := checkTurn(m, player); err != nil {
		return Response{}, err
	}

	board, next, err := c.validator.play(m.Board, msg.Move)
	if err != nil {
		return Response{}, err
	}
	m.State = next
	m.Board = board.Encode()
	m.LastMove = env.BlockHeight

	resp := newResponse(msg.Action(), player).addEvent(
		newEvent(EventMoveExecuted).
			add("match_id", id.String()).
			add("player", player.String()).
			add("move", msg.Move),
	)

	switch next.(type) {
	case Won:
		pot, err := escrow.SettleWin(m.Bet, player)
		if err != nil {
			return Response{}, err
		}
		resp = resp.addEvent(
			newEvent(EventMatchWon).
				add("match_id", id.String()).
				add("winner", player.String()).
				add("board", m.Board),
		)
		resp.Transfers = []escrow.Transfer{pot}
		resp.Finished = &Finished{ID: id, Match: m, Outcome: OutcomeWon, Winner: player}
		removeMatch(tx, id, m)
	case Drawn:
		resp = resp.addEvent(
			newEvent(EventMatchDrawn).
				add("match_id", id.String()).
				add("board", m.Board),
		)
		resp.Transfers = escrow.SettleDraw(m.Bet, m.Challenger, m.Opponent)
		resp.Finished = &Finished{ID: id, Match: m, Outcome: OutcomeDrawn}
		removeMatch(tx, id, m)
	default:
		if err := saveMatch(tx, id, m); err != nil {
			return Response{}, err
		}
	}
	return resp, nil
}

func checkTurn(m Match, player identity.Address) error {
	switch s := m.State.(type) {
	case AwaitingOpponent:
		return wagererr.ErrStillAwaitingOpponent
	case Won, Drawn:
		return wagererr.ErrMatchAlreadyFinished
	case OnGoing:
		if s.Turn == White && player != m.Challenger {
			return wagererr.ErrNotYourTurn
		}
		if s.Turn == Black && player != m.Opponent {
			return wagererr.ErrNotYourTurn
		}
		return nil
	default:
		return fmt.Errorf("wager: unknown state %T", m.State)
	}
}

func (c *Contract) migrate(tx ledger.Tx, cfg Config, info MessageInfo) (Response, error) {
	if info.Sender != cfg.Admin {
		return Response{}, wagererr.ErrUnauthorized
	}
	if cfg.Info.Contract != ContractName {
		return Response{}, wagererr.ErrInvalidMigration
	}
	cmp, err := compareVersions(cfg.Info.Version, c.version)
	if err != nil || cmp > 0 {
		return Response{}, wagererr.ErrInvalidMigration
	}
	if err := setJSON(tx, keyContractInfo, ContractInfo{Contract: ContractName, Version: c.version}); err != nil {
		return Response{}, err
	}
	return newResponse(Migrate{}.Action(), info.Sender).
		addAttribute("from_version", cfg.Info.Version).
		addAttribute("to_version", c.version), nil
}

// compareVersions compares dotted numeric versions such as 1.2.0.
func compareVersions(a, b string) (int, error) {
	pa, err := splitVersion(a)
	if err != nil {
		return 0, err
	}
	pb, err := splitVersion(b)
	if err != nil {
		return 0, err
	}
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var x, y uint64
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
	}
	return 0, nil
}

func splitVersion(v string) ([]uint64, error) {
	parts := strings.Split(strings.TrimPrefix(v, "v"), ".")
	out := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("version %q: %w", v, err)
		}
		out[i] = n
	}
	return out, nil
}
