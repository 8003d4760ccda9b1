package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"Canada28Bot/internal/logger"
	"Canada28Bot/internal/model"
)

var log = logger.For("recorder")

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// WAL keeps dashboard reads from blocking the engine's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Infof("sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bets (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			run_id      TEXT,
			basis_issue TEXT,
			strategy    TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			amount      INTEGER NOT NULL,
			account     TEXT,
			chat_id     TEXT,
			dispatched  INTEGER NOT NULL,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bets_ts ON bets(timestamp)`,

		`CREATE TABLE IF NOT EXISTS settlements (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			run_id       TEXT,
			issue        TEXT NOT NULL,
			sum          INTEGER NOT NULL,
			strategy     TEXT NOT NULL,
			predicted    TEXT NOT NULL,
			actual       TEXT NOT NULL,
			win          INTEGER NOT NULL,
			bet_amount   INTEGER NOT NULL,
			next_bet     INTEGER NOT NULL,
			win_streak   INTEGER NOT NULL,
			streak_reset INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_ts ON settlements(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func stamp(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Unix()
}

func (r *SQLiteRecorder) RecordBet(rec *model.BetRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO bets
		(timestamp, run_id, basis_issue, strategy, outcome, amount, account, chat_id, dispatched, error)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		stamp(rec.CreatedAt), rec.RunID, rec.BasisIssue, rec.Strategy, string(rec.Outcome), rec.Amount,
		rec.Account, rec.ChatID, rec.Dispatched, rec.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordSettlement(rec *model.SettlementRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO settlements
		(timestamp, run_id, issue, sum, strategy, predicted, actual, win, bet_amount, next_bet, win_streak, streak_reset)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		stamp(rec.CreatedAt), rec.RunID, rec.Issue, rec.Sum, rec.Strategy,
		string(rec.Predicted), string(rec.Actual), rec.Win,
		rec.BetAmount, rec.NextBet, rec.WinStreak, rec.StreakReset,
	)
	return err
}

// RecentSettlements returns the newest settlements first.
func (r *SQLiteRecorder) RecentSettlements(limit int) ([]model.SettlementRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT timestamp, run_id, issue, sum, strategy, predicted, actual,
		win, bet_amount, next_bet, win_streak, streak_reset
		FROM settlements ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SettlementRecord
	for rows.Next() {
		var (
			rec               model.SettlementRecord
			ts                int64
			predicted, actual string
			runID             sql.NullString
		)
		if err := rows.Scan(&ts, &runID, &rec.Issue, &rec.Sum, &rec.Strategy, &predicted, &actual,
			&rec.Win, &rec.BetAmount, &rec.NextBet, &rec.WinStreak, &rec.StreakReset); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(ts, 0)
		rec.RunID = runID.String
		rec.Predicted = model.Outcome(predicted)
		rec.Actual = model.Outcome(actual)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summary aggregates bets and settlements recorded at or after since.
func (r *SQLiteRecorder) Summary(since time.Time) (*Summary, error) {
	from := since.Unix()
	per := map[string]*StrategySummary{}
	get := func(name string) *StrategySummary {
		s, ok := per[name]
		if !ok {
			s = &StrategySummary{Strategy: name}
			per[name] = s
		}
		return s
	}

	rows, err := r.db.Query(`SELECT strategy, COUNT(*),
		COALESCE(SUM(dispatched), 0), COALESCE(SUM(CASE WHEN dispatched THEN amount ELSE 0 END), 0)
		FROM bets WHERE timestamp >= ? GROUP BY strategy`, from)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name string
		var total, dispatched, staked int
		if err := rows.Scan(&name, &total, &dispatched, &staked); err != nil {
			rows.Close()
			return nil, err
		}
		s := get(name)
		s.Bets, s.Dispatched, s.Failed, s.Staked = total, dispatched, total-dispatched, staked
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(`SELECT strategy, COALESCE(SUM(win), 0), COUNT(*) - COALESCE(SUM(win), 0)
		FROM settlements WHERE timestamp >= ? GROUP BY strategy`, from)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name string
		var wins, losses int
		if err := rows.Scan(&name, &wins, &losses); err != nil {
			rows.Close()
			return nil, err
		}
		s := get(name)
		s.Wins, s.Losses = wins, losses
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sum := &Summary{Since: since}
	if err := r.db.QueryRow(`SELECT COUNT(DISTINCT issue) FROM settlements WHERE timestamp >= ?`, from).Scan(&sum.Draws); err != nil {
		return nil, err
	}
	for _, s := range per {
		sum.Strategies = append(sum.Strategies, *s)
	}
	sort.Slice(sum.Strategies, func(i, j int) bool { return sum.Strategies[i].Strategy < sum.Strategies[j].Strategy })
	return sum, nil
}

// Prune deletes history older than before and returns the number of rows removed.
func (r *SQLiteRecorder) Prune(before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	for _, table := range []string{"bets", "settlements"} {
		res, err := r.db.Exec(`DELETE FROM `+table+` WHERE timestamp < ?`, before.Unix())
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Info("closing sqlite recorder")
	return r.db.Close()
}
