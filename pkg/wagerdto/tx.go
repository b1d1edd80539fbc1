package wagerdto

// Coin is an amount at the boundary. Amount is a base-10 integer string.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type InitializeMsg struct {
	MinBet Coin `json:"min_bet"`
}

type CreateMatchMsg struct {
	Opponent string `json:"opponent"`
}

type MatchRef struct {
	MatchID string `json:"match_id"`
}

type MakeMoveMsg struct {
	MatchID string `json:"match_id"`
	Move    string `json:"move"`
}

type MigrateMsg struct{}

// MsgEnvelope carries exactly one operation.
type MsgEnvelope struct {
	Initialize  *InitializeMsg  `json:"initialize,omitempty"`
	CreateMatch *CreateMatchMsg `json:"create_match,omitempty"`
	AbortMatch  *MatchRef       `json:"abort_match,omitempty"`
	JoinMatch   *MatchRef       `json:"join_match,omitempty"`
	MakeMove    *MakeMoveMsg    `json:"make_move,omitempty"`
	Migrate     *MigrateMsg     `json:"migrate,omitempty"`
}

type TxRequest struct {
	Sender string      `json:"sender"`
	Funds  []Coin      `json:"funds,omitempty"`
	Msg    MsgEnvelope `json:"msg"`
}

type Transfer struct {
	To     string `json:"to"`
	Amount Coin   `json:"amount"`
}

type TxResponse struct {
	Height     uint64            `json:"height"`
	Attributes map[string]string `json:"attributes"`
	Events     []Event           `json:"events"`
	Transfers  []Transfer        `json:"transfers,omitempty"`
}
