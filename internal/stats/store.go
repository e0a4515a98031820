package stats

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Daily is one day's aggregate counters.
type Daily struct {
	Day                  string  `json:"day"` // YYYY-MM-DD
	ProlongedSeconds     float64 `json:"prolonged_seconds"`
	BreakCount           int     `json:"break_count"`
	LongestSeatedSeconds float64 `json:"longest_seated_seconds"`
}

// Store persists daily counters in SQLite (modernc.org/sqlite,
// CGO-free). Path is a filesystem path; ":memory:" works for tests.
type Store struct {
	db *sql.DB
}

// Open opens the database and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty stats db path")
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout=3000;")
	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS daily_stats(
		day TEXT PRIMARY KEY,
		prolonged_seconds REAL NOT NULL,
		break_count INTEGER NOT NULL,
		longest_seated_seconds REAL NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`)
	return err
}

// Upsert writes one day's counters, replacing any previous row.
func (s *Store) Upsert(ctx context.Context, d Daily) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO daily_stats
		(day, prolonged_seconds, break_count, longest_seated_seconds, updated_at)
		VALUES(?,?,?,?,?)
		ON CONFLICT(day) DO UPDATE SET
			prolonged_seconds=excluded.prolonged_seconds,
			break_count=excluded.break_count,
			longest_seated_seconds=excluded.longest_seated_seconds,
			updated_at=excluded.updated_at`,
		d.Day, d.ProlongedSeconds, d.BreakCount, d.LongestSeatedSeconds, time.Now().UTC())
	return err
}

// Recent returns up to limit days, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Daily, error) {
	if limit <= 0 {
		limit = 7
	}
	rows, err := s.db.QueryContext(ctx, `SELECT day, prolonged_seconds, break_count,
		longest_seated_seconds FROM daily_stats ORDER BY day DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Daily
	for rows.Next() {
		var d Daily
		if err := rows.Scan(&d.Day, &d.ProlongedSeconds, &d.BreakCount, &d.LongestSeatedSeconds); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
