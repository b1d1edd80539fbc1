package api

import (
	"sort"

	"github.com/park285/cheese-wager/internal/archive"
	"github.com/park285/cheese-wager/internal/chain"
	"github.com/park285/cheese-wager/internal/escrow"
	"github.com/park285/cheese-wager/internal/wager"
	"github.com/park285/cheese-wager/pkg/wagerdto"
)

func coinsFromDTO(in []wagerdto.Coin) ([]escrow.Coin, error) {
	out := make([]escrow.Coin, 0, len(in))
	for _, c := range in {
		coin, err := coinFromDTO(c)
		if err != nil {
			return nil, err
		}
		out = append(out, coin)
	}
	return out, nil
}

func coinFromDTO(c wagerdto.Coin) (escrow.Coin, error) {
	coin, err := escrow.ParseCoin(c.Amount, c.Denom)
	if err != nil {
		return escrow.Coin{}, errBadRequest("invalid amount " + c.Amount)
	}
	return coin, nil
}

func coinToDTO(c escrow.Coin) wagerdto.Coin {
	amount := "0"
	if c.Amount != nil {
		amount = c.Amount.Dec()
	}
	return wagerdto.Coin{Denom: c.Denom, Amount: amount}
}

// msgFromEnvelope accepts exactly one populated operation.
func msgFromEnvelope(env wagerdto.MsgEnvelope) (wager.Msg, error) {
	var msgs []wager.Msg
	if env.Initialize != nil {
		coin, err := coinFromDTO(env.Initialize.MinBet)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, wager.Instantiate{MinBet: coin})
	}
	if env.CreateMatch != nil {
		msgs = append(msgs, wager.CreateMatch{Opponent: env.CreateMatch.Opponent})
	}
	if env.AbortMatch != nil {
		msgs = append(msgs, wager.AbortMatch{MatchID: env.AbortMatch.MatchID})
	}
	if env.JoinMatch != nil {
		msgs = append(msgs, wager.JoinMatch{MatchID: env.JoinMatch.MatchID})
	}
	if env.MakeMove != nil {
		msgs = append(msgs, wager.MakeMove{MatchID: env.MakeMove.MatchID, Move: env.MakeMove.Move})
	}
	if env.Migrate != nil {
		msgs = append(msgs, wager.Migrate{})
	}
	if len(msgs) != 1 {
		return nil, errBadRequest("msg must carry exactly one operation")
	}
	return msgs[0], nil
}

func txResponse(res chain.Result) wagerdto.TxResponse {
	attrs := make(map[string]string, len(res.Response.Attributes))
	for _, a := range res.Response.Attributes {
		attrs[a.Key] = a.Value
	}
	out := wagerdto.TxResponse{Height: res.Height, Attributes: attrs, Events: res.Events}
	if out.Events == nil {
		out.Events = []wagerdto.Event{}
	}
	for _, tr := range res.Response.Transfers {
		out.Transfers = append(out.Transfers, wagerdto.Transfer{To: tr.To.String(), Amount: coinToDTO(tr.Amount)})
	}
	return out
}

func matchView(e wager.Entry) wagerdto.MatchView {
	m := e.Match
	return wagerdto.MatchView{
		ID:         e.ID.String(),
		Challenger: m.Challenger.String(),
		Opponent:   m.Opponent.String(),
		Board:      m.Board,
		State:      wager.StateName(m.State),
		Turn:       wager.StateTurn(m.State),
		Nonce:      m.Nonce,
		LastMove:   m.LastMove,
		Start:      m.Start,
		Bet:        coinToDTO(m.Bet),
	}
}

func matchList(entries []wager.Entry) wagerdto.MatchList {
	out := wagerdto.MatchList{Matches: make([]wagerdto.MatchView, 0, len(entries))}
	for _, e := range entries {
		out.Matches = append(out.Matches, matchView(e))
	}
	return out
}

func historyList(results []archive.Result) wagerdto.HistoryList {
	out := wagerdto.HistoryList{Entries: make([]wagerdto.HistoryEntry, 0, len(results))}
	for _, r := range results {
		payouts := make([]wagerdto.Transfer, 0, len(r.Payouts))
		for _, p := range r.Payouts {
			payouts = append(payouts, wagerdto.Transfer{To: p.To, Amount: wagerdto.Coin{Denom: p.Denom, Amount: p.Amount}})
		}
		sort.SliceStable(payouts, func(i, j int) bool { return payouts[i].To < payouts[j].To })
		out.Entries = append(out.Entries, wagerdto.HistoryEntry{
			MatchID:    r.MatchID,
			Challenger: r.Challenger,
			Opponent:   r.Opponent,
			Outcome:    r.Outcome,
			Winner:     r.Winner,
			FinalBoard: r.FinalBoard,
			Bet:        wagerdto.Coin{Denom: r.BetDenom, Amount: r.BetAmount},
			Started:    r.Started,
			Ended:      r.Ended,
			Payouts:    payouts,
			Result:     r.PGNResult,
			ArchivedAt: r.ArchivedAt,
		})
	}
	return out
}
