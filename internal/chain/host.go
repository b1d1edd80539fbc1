// Package chain hosts the contract: it orders operations, assigns block heights,
// escrows attached funds and executes payouts inside one atomic ledger commit.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/park285/cheese-wager/internal/archive"
	"github.com/park285/cheese-wager/internal/bank"
	"github.com/park285/cheese-wager/internal/escrow"
	"github.com/park285/cheese-wager/internal/identity"
	"github.com/park285/cheese-wager/internal/ledger"
	"github.com/park285/cheese-wager/internal/obslog"
	"github.com/park285/cheese-wager/internal/wager"
	"github.com/park285/cheese-wager/internal/wagererr"
	"github.com/park285/cheese-wager/pkg/wagerdto"
)

const keyHeight = "chain/height"

// ErrNoArchive is returned by History when no archive is attached.
var ErrNoArchive = errors.New("chain: archive not configured")

// Publisher receives committed events.
type Publisher interface {
	Publish(events ...wagerdto.Event)
}

// Archive stores finished matches.
type Archive interface {
	Record(ctx context.Context, res archive.Result) error
	Recent(ctx context.Context, player string, limit int) ([]archive.Result, error)
}

// Result is a committed operation.
type Result struct {
	Height   uint64
	Response wager.Response
	Events   []wagerdto.Event
}

type Host struct {
	mu       sync.Mutex
	store    ledger.Store
	contract *wager.Contract
	address  identity.Address
	pub      Publisher
	archive  Archive
}

type Option func(*Host)

func WithPublisher(p Publisher) Option { return func(h *Host) { h.pub = p } }

func WithArchive(a Archive) Option { return func(h *Host) { h.archive = a } }

// New builds a host. contractAddr is the account holding escrowed stakes.
func New(store ledger.Store, contract *wager.Contract, contractAddr string, opts ...Option) (*Host, error) {
	addr, err := identity.ValidateAddress(contractAddr)
	if err != nil {
		return nil, fmt.Errorf("contract address %q: %w", contractAddr, err)
	}
	h := &Host{store: store, contract: contract, address: addr}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Address is the contract account.
func (h *Host) Address() identity.Address { return h.address }

// Execute runs one operation. On any error nothing is committed and the block
// height is not consumed.
func (h *Host) Execute(ctx context.Context, sender string, funds []escrow.Coin, msg wager.Msg) (Result, error) {
	res, err := h.execute(ctx, sender, funds, msg)
	code := "OK"
	if err != nil {
		code = "INTERNAL"
		if e, ok := wagererr.As(err); ok {
			code = string(e.Code)
		} else if errors.Is(err, ledger.ErrConflict) {
			code = "CONFLICT"
		}
	}
	txTotal.WithLabelValues(msg.Action(), code).Inc()

	if err != nil {
		obslog.L().Info("wager_tx_reject",
			zap.String("action", msg.Action()),
			zap.String("sender", sender),
			zap.String("code", code),
			zap.Error(err),
		)
		return Result{}, err
	}

	blockHeight.Set(float64(res.Height))
	obslog.L().Info("wager_tx_commit",
		zap.String("action", msg.Action()),
		zap.String("sender", sender),
		zap.Uint64("height", res.Height),
		zap.Int("events", len(res.Events)),
		zap.Int("transfers", len(res.Response.Transfers)),
	)

	if fin := res.Response.Finished; fin != nil {
		matchesFinished.WithLabelValues(string(fin.Outcome)).Inc()
		h.record(ctx, res.Height, fin, res.Response.Transfers)
	}
	return res, nil
}

func (h *Host) execute(ctx context.Context, sender string, funds []escrow.Coin, msg wager.Msg) (Result, error) {
	from, err := identity.ValidateAddress(sender)
	if err != nil {
		return Result{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var res Result
	err = h.store.Update(ctx, func(tx ledger.Tx) error {
		height, err := loadHeight(ctx, tx)
		if err != nil {
			return err
		}
		height++

		if err := bank.Send(ctx, tx, from, h.address, funds); err != nil {
			return err
		}
		resp, err := h.contract.Handle(ctx, tx,
			wager.Env{BlockHeight: height, Contract: h.address},
			wager.MessageInfo{Sender: from, Funds: funds},
			msg,
		)
		if err != nil {
			return err
		}
		for _, tr := range resp.Transfers {
			if err := bank.Send(ctx, tx, h.address, tr.To, []escrow.Coin{tr.Amount}); err != nil {
				return fmt.Errorf("payout to %s: %w", tr.To, err)
			}
		}
		tx.Set(keyHeight, []byte(strconv.FormatUint(height, 10)))

		res = Result{Height: height, Response: resp, Events: stampEvents(height, resp.Events)}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	// Published under h.mu so subscribers see heights in commit order.
	if h.pub != nil && len(res.Events) > 0 {
		h.pub.Publish(res.Events...)
	}
	return res, nil
}

func stampEvents(height uint64, events []wager.Event) []wagerdto.Event {
	out := make([]wagerdto.Event, 0, len(events))
	for i, ev := range events {
		attrs := make(map[string]string, len(ev.Attributes))
		for _, a := range ev.Attributes {
			attrs[a.Key] = a.Value
		}
		out = append(out, wagerdto.Event{Height: height, Index: i, Type: ev.Type, Attributes: attrs})
	}
	return out
}

// record archives a finished match. Failures are logged; the ledger commit stands.
func (h *Host) record(ctx context.Context, height uint64, fin *wager.Finished, transfers []escrow.Transfer) {
	if h.archive == nil {
		return
	}
	payouts := make([]archive.Payout, 0, len(transfers))
	for _, tr := range transfers {
		payouts = append(payouts, archive.Payout{To: tr.To.String(), Denom: tr.Amount.Denom, Amount: tr.Amount.Amount.Dec()})
	}
	res := archive.Result{
		MatchID:    fin.ID.String(),
		Challenger: fin.Match.Challenger.String(),
		Opponent:   fin.Match.Opponent.String(),
		Outcome:    string(fin.Outcome),
		Winner:     fin.Winner.String(),
		FinalBoard: fin.Match.Board,
		BetAmount:  fin.Match.Bet.Amount.Dec(),
		BetDenom:   fin.Match.Bet.Denom,
		Started:    fin.Match.Start,
		Ended:      height,
		Payouts:    payouts,
	}
	if err := h.archive.Record(ctx, res); err != nil {
		obslog.L().Error("archive_error", zap.String("match_id", res.MatchID), zap.Error(err))
	}
}

func loadHeight(ctx context.Context, r ledger.Reader) (uint64, error) {
	raw, ok, err := r.Get(ctx, keyHeight)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", keyHeight, err)
	}
	return n, nil
}

// Height is the last committed block height.
func (h *Host) Height(ctx context.Context) (uint64, error) { return loadHeight(ctx, h.store) }

func (h *Host) Match(ctx context.Context, id string) (wager.Entry, error) {
	return wager.GetMatch(ctx, h.store, id)
}

func (h *Host) PlayerMatches(ctx context.Context, player string) ([]wager.Entry, error) {
	return wager.PlayerMatches(ctx, h.store, player)
}

func (h *Host) Matches(ctx context.Context, startAfter *uint64, limit int) ([]wager.Entry, error) {
	return wager.ListMatches(ctx, h.store, startAfter, limit)
}

func (h *Host) Config(ctx context.Context) (wager.Config, error) {
	return wager.LoadConfig(ctx, h.store)
}

func (h *Host) Balance(ctx context.Context, addr, denom string) (*uint256.Int, error) {
	a, err := identity.ValidateAddress(addr)
	if err != nil {
		return nil, err
	}
	return bank.Balance(ctx, h.store, a, denom)
}

// History lists a player's archived matches, newest first.
func (h *Host) History(ctx context.Context, player string, limit int) ([]archive.Result, error) {
	if h.archive == nil {
		return nil, ErrNoArchive
	}
	if _, err := identity.ValidateAddress(player); err != nil {
		return nil, err
	}
	return h.archive.Recent(ctx, player, limit)
}
