package wagerdto

import "time"

type MatchView struct {
	ID         string `json:"id"`
	Challenger string `json:"challenger"`
	Opponent   string `json:"opponent"`
	Board      string `json:"board"`
	State      string `json:"state"`
	Turn       string `json:"turn,omitempty"`
	Nonce      uint64 `json:"nonce"`
	LastMove   uint64 `json:"last_move"`
	Start      uint64 `json:"start"`
	Bet        Coin   `json:"bet"`
}

type MatchList struct {
	Matches []MatchView `json:"matches"`
}

type ConfigView struct {
	Contract  string `json:"contract"`
	Version   string `json:"version"`
	Admin     string `json:"admin"`
	MinBet    Coin   `json:"min_bet"`
	NextNonce uint64 `json:"next_nonce"`
	Height    uint64 `json:"height"`
}

type BalanceView struct {
	Address string `json:"address"`
	Coin    Coin   `json:"coin"`
}

// HistoryEntry is a finished match as kept in the archive.
type HistoryEntry struct {
	MatchID    string     `json:"match_id"`
	Challenger string     `json:"challenger"`
	Opponent   string     `json:"opponent"`
	Outcome    string     `json:"outcome"`
	Winner     string     `json:"winner,omitempty"`
	FinalBoard string     `json:"final_board"`
	Bet        Coin       `json:"bet"`
	Started    uint64     `json:"started_at_height"`
	Ended      uint64     `json:"ended_at_height"`
	Payouts    []Transfer `json:"payouts"`
	Result     string     `json:"result"`
	ArchivedAt time.Time  `json:"archived_at"`
}

type HistoryList struct {
	Entries []HistoryEntry `json:"entries"`
}
