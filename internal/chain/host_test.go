package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/cheese-wager/internal/archive"
	"github.com/park285/cheese-wager/internal/bank"
	"github.com/park285/cheese-wager/internal/escrow"
	"github.com/park285/cheese-wager/internal/identity"
	"github.com/park285/cheese-wager/internal/ledger"
	"github.com/park285/cheese-wager/internal/rules"
	"github.com/park285/cheese-wager/internal/wager"
	"github.com/park285/cheese-wager/internal/wagererr"
	"github.com/park285/cheese-wager/pkg/wagerdto"
)

const (
	admin      = "admin"
	challenger = "neutron1m9l358xunhhwds0568za49mzhvuxx9ux8xafx2"
	opponent   = "neutron10h9stc5v6ntgeygf5xf945njqq5h32r54rf7kf"
	contract   = "wagercontract"
	denom      = "untrn"
)

type recorder struct {
	mu     sync.Mutex
	events []wagerdto.Event
}

func (r *recorder) Publish(events ...wagerdto.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func genesis() Genesis {
	return Genesis{
		Admin:  admin,
		MinBet: escrow.NewCoin(10, denom),
		Accounts: []Account{
			{Address: challenger, Coins: []escrow.Coin{escrow.NewCoin(100, denom)}},
			{Address: opponent, Coins: []escrow.Coin{escrow.NewCoin(100, denom)}},
		},
	}
}

func newTestHost(t *testing.T, store ledger.Store) (*Host, *recorder, *archive.Repository) {
	t.Helper()
	repo, err := archive.Open(context.Background(), archive.DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	rec := &recorder{}
	h, err := New(store, wager.New(rules.NewChessEngine()), contract, WithPublisher(rec), WithArchive(repo))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	applied, err := h.ApplyGenesis(context.Background(), genesis())
	if err != nil || !applied {
		t.Fatalf("ApplyGenesis: %v %v", applied, err)
	}
	return h, rec, repo
}

func stores(t *testing.T) map[string]ledger.Store {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rs, err := ledger.NewRedisStore(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	t.Cleanup(func() { _ = rs.Close() })
	return map[string]ledger.Store{"memory": ledger.NewMemStore(), "redis": rs}
}

func balance(t *testing.T, h *Host, addr string) uint64 {
	t.Helper()
	v, err := h.Balance(context.Background(), addr, denom)
	if err != nil {
		t.Fatalf("Balance %s: %v", addr, err)
	}
	return v.Uint64()
}

func stake(n uint64) []escrow.Coin { return []escrow.Coin{escrow.NewCoin(n, denom)} }

func TestEndToEndCheckmate(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			h, rec, repo := newTestHost(t, store)
			ctx := context.Background()

			res, err := h.Execute(ctx, challenger, stake(10), wager.CreateMatch{Opponent: opponent})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			id := res.Events[0].Attributes["match_id"]
			if balance(t, h, challenger) != 90 || balance(t, h, contract) != 10 {
				t.Fatalf("stake not escrowed")
			}

			res, err = h.Execute(ctx, opponent, stake(10), wager.JoinMatch{MatchID: id})
			if err != nil {
				t.Fatalf("join: %v", err)
			}
			entry, _ := h.Match(ctx, id)
			if s, ok := entry.Match.State.(wager.OnGoing); !ok || s.Turn != wager.White || entry.Match.Start != res.Height {
				t.Fatalf("after join: %+v", entry.Match)
			}

			if _, err := h.Execute(ctx, challenger, nil, wager.MakeMove{MatchID: id, Move: "e2e4"}); err != nil {
				t.Fatalf("e2e4: %v", err)
			}
			entry, _ = h.Match(ctx, id)
			if s, ok := entry.Match.State.(wager.OnGoing); !ok || s.Turn != wager.Black {
				t.Fatalf("expected black to move: %v", entry.Match.State)
			}

			_, err = h.Execute(ctx, challenger, nil, wager.MakeMove{MatchID: id, Move: "d2d4"})
			if !errors.Is(err, wagererr.ErrNotYourTurn) {
				t.Fatalf("expected NotYourTurn, got %v", err)
			}

			moves := []string{"e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7"}
			for i, mv := range moves {
				sender := opponent
				if i%2 == 1 {
					sender = challenger
				}
				res, err = h.Execute(ctx, sender, nil, wager.MakeMove{MatchID: id, Move: mv})
				if err != nil {
					t.Fatalf("%s: %v", mv, err)
				}
			}

			if balance(t, h, challenger) != 110 || balance(t, h, opponent) != 90 || balance(t, h, contract) != 0 {
				t.Fatalf("unexpected balances c=%d o=%d k=%d",
					balance(t, h, challenger), balance(t, h, opponent), balance(t, h, contract))
			}
			if _, err := h.Match(ctx, id); !errors.Is(err, wagererr.ErrUnknownMatch) {
				t.Fatalf("finished match still stored: %v", err)
			}
			for _, p := range []string{challenger, opponent} {
				if list, _ := h.PlayerMatches(ctx, p); len(list) != 0 {
					t.Fatalf("player index not cleaned for %s", p)
				}
			}
			if list, _ := h.Matches(ctx, nil, 0); len(list) != 0 {
				t.Fatalf("nonce index not cleaned")
			}

			types := rec.types()
			if types[len(types)-1] != wager.EventMatchWon || types[0] != wager.EventMatchCreated {
				t.Fatalf("unexpected event stream %v", types)
			}

			hist, err := repo.Recent(ctx, challenger, 10)
			if err != nil || len(hist) != 1 || hist[0].Winner != challenger || hist[0].PGNResult != "1-0" {
				t.Fatalf("archive: %+v %v", hist, err)
			}
			if hist[0].Ended != res.Height {
				t.Fatalf("archived end height %d, want %d", hist[0].Ended, res.Height)
			}
		})
	}
}

func TestRejectedOperationCommitsNothing(t *testing.T) {
	h, rec, _ := newTestHost(t, ledger.NewMemStore())
	ctx := context.Background()

	before, _ := h.Height(ctx)
	_, err := h.Execute(ctx, challenger, stake(5), wager.CreateMatch{Opponent: opponent})
	if !errors.Is(err, wagererr.InvalidBet(wagererr.AmountTooLow)) {
		t.Fatalf("expected AmountTooLow, got %v", err)
	}
	after, _ := h.Height(ctx)
	if before != after {
		t.Fatalf("rejected op consumed a height: %d -> %d", before, after)
	}
	if balance(t, h, challenger) != 100 || balance(t, h, contract) != 0 {
		t.Fatalf("rejected op moved funds")
	}
	if len(rec.types()) != 0 {
		t.Fatalf("rejected op published events")
	}
}

func TestInsufficientFunds(t *testing.T) {
	h, _, _ := newTestHost(t, ledger.NewMemStore())
	_, err := h.Execute(context.Background(), challenger, stake(1000), wager.CreateMatch{Opponent: opponent})
	if !errors.Is(err, wagererr.ErrInsufficientFunds) {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}
}

func TestInvalidSender(t *testing.T) {
	h, _, _ := newTestHost(t, ledger.NewMemStore())
	_, err := h.Execute(context.Background(), "Bad Sender", nil, wager.CreateMatch{Opponent: opponent})
	if !errors.Is(err, wagererr.ErrInvalidAddress) {
		t.Fatalf("expected InvalidAddress, got %v", err)
	}
}

func TestAbortKeepsChallengerStakeInContract(t *testing.T) {
	h, _, _ := newTestHost(t, ledger.NewMemStore())
	ctx := context.Background()
	res, err := h.Execute(ctx, challenger, stake(10), wager.CreateMatch{Opponent: opponent})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := res.Events[0].Attributes["match_id"]
	if _, err := h.Execute(ctx, challenger, nil, wager.AbortMatch{MatchID: id}); err != nil {
		t.Fatalf("abort: %v", err)
	}
	// Abort issues no refund: the stake stays with the contract account.
	if balance(t, h, challenger) != 90 || balance(t, h, contract) != 10 {
		t.Fatalf("unexpected balances after abort c=%d k=%d", balance(t, h, challenger), balance(t, h, contract))
	}
}

func TestGenesisAppliesOnce(t *testing.T) {
	h, _, _ := newTestHost(t, ledger.NewMemStore())
	applied, err := h.ApplyGenesis(context.Background(), genesis())
	if err != nil || applied {
		t.Fatalf("second genesis must be a no-op: %v %v", applied, err)
	}
	if balance(t, h, challenger) != 100 {
		t.Fatalf("genesis minted twice")
	}
	cfg, err := h.Config(context.Background())
	if err != nil || cfg.Admin != admin {
		t.Fatalf("config: %+v %v", cfg, err)
	}
}

func TestHeightsIncreasePerCommit(t *testing.T) {
	h, rec, _ := newTestHost(t, ledger.NewMemStore())
	ctx := context.Background()
	a, _ := h.Execute(ctx, challenger, stake(10), wager.CreateMatch{Opponent: opponent})
	b, _ := h.Execute(ctx, challenger, stake(10), wager.CreateMatch{Opponent: opponent})
	if a.Height != 1 || b.Height != 2 {
		t.Fatalf("heights %d %d", a.Height, b.Height)
	}
	if a.Events[0].Attributes["match_id"] == b.Events[0].Attributes["match_id"] {
		t.Fatalf("repeated create must yield distinct matches")
	}
	if len(rec.events) != 2 || rec.events[1].Height != 2 {
		t.Fatalf("published events not stamped: %+v", rec.events)
	}
}

func TestHistoryWithoutArchive(t *testing.T) {
	h, err := New(ledger.NewMemStore(), wager.New(rules.NewChessEngine()), contract)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := h.History(context.Background(), challenger, 10); !errors.Is(err, ErrNoArchive) {
		t.Fatalf("expected ErrNoArchive, got %v", err)
	}
}

func TestConcurrentCommitsPublishInHeightOrder(t *testing.T) {
	store := ledger.NewMemStore()
	h, rec, _ := newTestHost(t, store)
	ctx := context.Background()

	// Top up the challenger so every create is funded.
	err := store.Update(ctx, func(tx ledger.Tx) error {
		return bank.Mint(ctx, tx, identity.Address(challenger), stake(100000))
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	const n = 500
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Execute(ctx, challenger, stake(10), wager.CreateMatch{Opponent: opponent}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("create: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != n {
		t.Fatalf("published %d events, want %d", len(rec.events), n)
	}
	for i := 1; i < len(rec.events); i++ {
		if rec.events[i].Height <= rec.events[i-1].Height {
			t.Fatalf("event %d at height %d after height %d", i, rec.events[i].Height, rec.events[i-1].Height)
		}
	}
}

func TestFundsMoveBeforeValidation(t *testing.T) {
	h, rec, _ := newTestHost(t, ledger.NewMemStore())
	ctx := context.Background()

	// Attached funds are debited first, so a shortfall wins over contract checks.
	_, err := h.Execute(ctx, challenger, stake(1000), wager.CreateMatch{Opponent: challenger})
	if !errors.Is(err, wagererr.ErrInsufficientFunds) {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}
	dup := []escrow.Coin{escrow.NewCoin(60, denom), escrow.NewCoin(60, denom)}
	_, err = h.Execute(ctx, challenger, dup, wager.CreateMatch{Opponent: opponent})
	if !errors.Is(err, wagererr.ErrInsufficientFunds) {
		t.Fatalf("expected InsufficientFunds for duplicate denom, got %v", err)
	}

	_, err = h.Execute(ctx, challenger, stake(10), wager.CreateMatch{Opponent: challenger})
	if !errors.Is(err, wagererr.ErrInvalidOpponent) {
		t.Fatalf("expected InvalidOpponent, got %v", err)
	}
	if balance(t, h, challenger) != 100 || len(rec.types()) != 0 {
		t.Fatalf("rejected ops changed state")
	}
}
