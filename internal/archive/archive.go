// Package archive keeps finished matches in SQL once they leave the ledger.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Payout is one settlement transfer.
type Payout struct {
	To     string `json:"to"`
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Result is one archived match.
type Result struct {
	MatchID    string
	Challenger string
	Opponent   string
	Outcome    string
	Winner     string
	FinalBoard string
	BetAmount  string
	BetDenom   string
	Started    uint64
	Ended      uint64
	Payouts    []Payout
	PGNResult  string
	ArchivedAt time.Time
}

type Repository struct {
	db      *sql.DB
	dialect string
}

// Open connects and creates the schema when missing.
func Open(ctx context.Context, dialect, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported archive dialect: %s", dialect)
	}
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, err
	}
	if dialect == DialectSQLite {
		// one connection so :memory: databases are shared
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(8)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	r := &Repository{db: db, dialect: dialect}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive schema: %w", err)
	}
	return r, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

const schema = `CREATE TABLE IF NOT EXISTS wager_results (
    match_id          TEXT PRIMARY KEY,
    challenger        TEXT NOT NULL,
    opponent          TEXT NOT NULL,
    outcome           TEXT NOT NULL,
    winner            TEXT NOT NULL,
    final_board       TEXT NOT NULL,
    bet_amount        TEXT NOT NULL,
    bet_denom         TEXT NOT NULL,
    started_at_height BIGINT NOT NULL,
    ended_at_height   BIGINT NOT NULL,
    payouts_json      TEXT NOT NULL,
    pgn_result        TEXT NOT NULL,
    pgn               TEXT NOT NULL,
    archived_at_ms    BIGINT NOT NULL
)`

func (r *Repository) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Record upserts a finished match.
func (r *Repository) Record(ctx context.Context, res Result) error {
	if r == nil || r.db == nil {
		return nil
	}
	if res.ArchivedAt.IsZero() {
		res.ArchivedAt = time.Now()
	}
	if res.PGNResult == "" {
		res.PGNResult = pgnResult(res)
	}
	payouts, err := json.Marshal(res.Payouts)
	if err != nil {
		return err
	}

	q := `INSERT INTO wager_results (
        match_id, challenger, opponent, outcome, winner, final_board,
        bet_amount, bet_denom, started_at_height, ended_at_height,
        payouts_json, pgn_result, pgn, archived_at_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
      ) ON CONFLICT (match_id) DO UPDATE SET
        challenger=EXCLUDED.challenger,
        opponent=EXCLUDED.opponent,
        outcome=EXCLUDED.outcome,
        winner=EXCLUDED.winner,
        final_board=EXCLUDED.final_board,
        bet_amount=EXCLUDED.bet_amount,
        bet_denom=EXCLUDED.bet_denom,
        started_at_height=EXCLUDED.started_at_height,
        ended_at_height=EXCLUDED.ended_at_height,
        payouts_json=EXCLUDED.payouts_json,
        pgn_result=EXCLUDED.pgn_result,
        pgn=EXCLUDED.pgn,
        archived_at_ms=EXCLUDED.archived_at_ms`

	_, err = r.db.ExecContext(ctx, r.rebind(q),
		res.MatchID, res.Challenger, res.Opponent, res.Outcome, res.Winner, res.FinalBoard,
		res.BetAmount, res.BetDenom, int64(res.Started), int64(res.Ended),
		string(payouts), res.PGNResult, buildPGN(res), res.ArchivedAt.UnixMilli(),
	)
	return err
}

// Recent lists a player's finished matches, newest first.
func (r *Repository) Recent(ctx context.Context, player string, limit int) ([]Result, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := `SELECT match_id, challenger, opponent, outcome, winner, final_board,
        bet_amount, bet_denom, started_at_height, ended_at_height,
        payouts_json, pgn_result, archived_at_ms
      FROM wager_results
      WHERE challenger = $1 OR opponent = $2
      ORDER BY ended_at_height DESC, match_id
      LIMIT $3`
	rows, err := r.db.QueryContext(ctx, r.rebind(q), player, player, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			res              Result
			started, ended   int64
			payouts          string
			archivedAtMillis int64
		)
		if err := rows.Scan(&res.MatchID, &res.Challenger, &res.Opponent, &res.Outcome, &res.Winner, &res.FinalBoard,
			&res.BetAmount, &res.BetDenom, &started, &ended, &payouts, &res.PGNResult, &archivedAtMillis); err != nil {
			return nil, err
		}
		res.Started, res.Ended = uint64(started), uint64(ended)
		res.ArchivedAt = time.UnixMilli(archivedAtMillis)
		if err := json.Unmarshal([]byte(payouts), &res.Payouts); err != nil {
			return nil, fmt.Errorf("payouts of %s: %w", res.MatchID, err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// rebind rewrites $n placeholders for drivers that only accept ?.
func (r *Repository) rebind(q string) string {
	if r.dialect != DialectSQLite {
		return q
	}
	var b strings.Builder
	for i := 0; i < len(q); i++ {
		if q[i] == '$' && i+1 < len(q) && q[i+1] >= '0' && q[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(q) && q[i+1] >= '0' && q[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// pgnResult reports the score from white's side. The challenger always plays white.
func pgnResult(res Result) string {
	switch {
	case res.Outcome == "drawn":
		return "1/2-1/2"
	case res.Winner != "" && res.Winner == res.Challenger:
		return "1-0"
	case res.Winner != "" && res.Winner == res.Opponent:
		return "0-1"
	default:
		return "*"
	}
}

func buildPGN(res Result) string {
	var b strings.Builder
	b.WriteString("[Event \"Wager\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(res.MatchID)))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(res.Challenger)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(res.Opponent)))
	b.WriteString(fmt.Sprintf("[Round \"%s\"]\n", strconv.FormatUint(res.Ended, 10)))
	b.WriteString("[SetUp \"1\"]\n")
	b.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", sanitizePGN(res.FinalBoard)))
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", res.PGNResult))
	b.WriteString(res.PGNResult)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
