package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/imishinist/coldbench/internal/models"
)

// SQLiteStore keeps every trace as a row, which lets several runs share one
// database file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLiteStore) createSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS traces (
		function TEXT NOT NULL,
		run_id TEXT NOT NULL,
		memory_size INTEGER NOT NULL,
		position INTEGER NOT NULL,
		trace_id TEXT NOT NULL,
		document TEXT NOT NULL,
		PRIMARY KEY (function, run_id, memory_size, position)
	)`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, function, runID string, tier models.Tier, traces []models.MinimalTrace) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM traces WHERE function = ? AND run_id = ? AND memory_size = ?`,
		function, runID, tier.MemorySize); err != nil {
		return fmt.Errorf("failed to clear traces: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO traces (function, run_id, memory_size, position, trace_id, document) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, trace := range traces {
		doc, err := json.Marshal(trace)
		if err != nil {
			return fmt.Errorf("failed to encode trace %s: %w", trace.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, function, runID, tier.MemorySize, i, trace.ID, string(doc)); err != nil {
			return fmt.Errorf("failed to insert trace %s: %w", trace.ID, err)
		}
	}

	// An empty tier still needs a marker row so Load can tell it apart
	// from a tier that was never saved.
	if len(traces) == 0 {
		if _, err := stmt.ExecContext(ctx, function, runID, tier.MemorySize, -1, "", "null"); err != nil {
			return fmt.Errorf("failed to insert marker: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context, function, runID string, tier models.Tier) ([]models.MinimalTrace, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, document FROM traces WHERE function = ? AND run_id = ? AND memory_size = ? ORDER BY position`,
		function, runID, tier.MemorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	found := false
	traces := []models.MinimalTrace{}
	for rows.Next() {
		found = true
		var position int
		var doc string
		if err := rows.Scan(&position, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		if position < 0 {
			continue
		}

		var trace models.MinimalTrace
		if err := json.Unmarshal([]byte(doc), &trace); err != nil {
			return nil, fmt.Errorf("failed to decode trace: %w", err)
		}
		traces = append(traces, trace)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read traces: %w", err)
	}

	if !found {
		return nil, fmt.Errorf("%w: %s run %s tier %s", ErrNotFound, function, runID, tier)
	}
	return traces, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
