// Package store persists simulation runs to SQLite so sweeps can be queried
// after the fact.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store handles SQLite persistence. All methods are safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Record is one persisted run.
type Record struct {
	ID             string
	Kind           string
	Seed           int64
	DistanceKm     float64
	BobDistanceKm  float64
	Depolarization float64
	Success        bool
	FailureReason  string
	QBER           float64
	// BellS is zero for prepare-and-measure runs.
	BellS          float64
	SiftedLength   int
	FinalKeyLength int
	SecureKeyRate  float64
	// Report is the full JSON rendering of the run.
	Report  []byte
	Created time.Time
}

// Open creates a new Store with the given database path, creating tables if
// they don't exist. ":memory:" opens an in-memory database.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Every pooled connection must see the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		seed INTEGER NOT NULL,
		distance_km REAL NOT NULL,
		bob_distance_km REAL NOT NULL,
		depolarization REAL NOT NULL,
		success INTEGER NOT NULL,
		failure_reason TEXT,
		qber REAL NOT NULL,
		bell_s REAL NOT NULL,
		sifted_length INTEGER NOT NULL,
		final_key_length INTEGER NOT NULL,
		secure_key_rate REAL NOT NULL,
		report BLOB,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind, distance_km);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Save stores r and returns its ID. Records without an ID are assigned a
// random one, and records without a creation time are stamped with the
// current time.
func (s *Store) Save(ctx context.Context, r Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Created.IsZero() {
		r.Created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, kind, seed, distance_km, bob_distance_km, depolarization,
			success, failure_reason, qber, bell_s, sifted_length,
			final_key_length, secure_key_rate, report, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Kind,
		r.Seed,
		r.DistanceKm,
		r.BobDistanceKm,
		r.Depolarization,
		boolToInt(r.Success),
		r.FailureReason,
		r.QBER,
		r.BellS,
		r.SiftedLength,
		r.FinalKeyLength,
		r.SecureKeyRate,
		r.Report,
		r.Created,
	)
	if err != nil {
		return "", fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return r.ID, nil
}

// List returns every stored run in insertion order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, seed, distance_km, bob_distance_km, depolarization,
			success, failure_reason, qber, bell_s, sifted_length,
			final_key_length, secure_key_rate, report, created_at
		FROM runs
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var success int
		var reason sql.NullString
		err := rows.Scan(
			&r.ID,
			&r.Kind,
			&r.Seed,
			&r.DistanceKm,
			&r.BobDistanceKm,
			&r.Depolarization,
			&success,
			&reason,
			&r.QBER,
			&r.BellS,
			&r.SiftedLength,
			&r.FinalKeyLength,
			&r.SecureKeyRate,
			&r.Report,
			&r.Created,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Success = success != 0
		r.FailureReason = reason.String
		records = append(records, r)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
