// Package store keeps a SQLite log of decoded predictions so evaluation runs
// can be compared after the fact.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS predictions(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts REAL NOT NULL,
	run TEXT NOT NULL,
	mode TEXT NOT NULL,
	question TEXT NOT NULL,
	gold TEXT NOT NULL,
	predicted TEXT NOT NULL,
	steps INTEGER NOT NULL,
	truncated INTEGER NOT NULL,
	exact INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS predictions_run ON predictions(run)`,
}

// Prediction is one decoded question.
type Prediction struct {
	Run       string
	Mode      string
	Question  string
	Gold      string
	Predicted string
	Steps     int
	Truncated bool
	Exact     bool
}

// Summary aggregates the predictions of one run.
type Summary struct {
	Total     int
	Exact     int
	Truncated int
	MeanSteps float64
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Store) Record(ctx context.Context, p Prediction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions(ts, run, mode, question, gold, predicted, steps, truncated, exact)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		float64(time.Now().UnixMilli())/1000.0,
		p.Run, p.Mode, p.Question, p.Gold, p.Predicted, p.Steps,
		boolInt(p.Truncated), boolInt(p.Exact),
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (s *Store) Summary(ctx context.Context, run string) (Summary, error) {
	var (
		sum       Summary
		meanSteps sql.NullFloat64
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(exact), 0), COALESCE(SUM(truncated), 0), AVG(steps)
		 FROM predictions WHERE run = ?`, run)
	if err := row.Scan(&sum.Total, &sum.Exact, &sum.Truncated, &meanSteps); err != nil {
		return Summary{}, fmt.Errorf("summarize run %s: %w", run, err)
	}
	sum.MeanSteps = meanSteps.Float64
	return sum, nil
}

// Runs lists run identifiers, most recent first.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run FROM predictions GROUP BY run ORDER BY MAX(id) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
