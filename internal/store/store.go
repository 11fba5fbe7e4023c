// Package store persists time series, scan results and trades in an
// embedded sqlite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// ErrCorrupt marks unrecoverable database damage. Callers exit with the
// store-corruption code.
var ErrCorrupt = errors.New("store corrupted")

// Kind names a sample series.
type Kind string

const (
	KindCandles Kind = "candles"
	KindTickers Kind = "tickers"
	KindOI      Kind = "oi"
	KindFunding Kind = "funding"
	KindLS      Kind = "ls_ratio"
	KindBooks   Kind = "books"
)

// caps holds per-kind retention. Books keep only the latest snapshot.
var caps = map[Kind]int{
	KindCandles: 500,
	KindTickers: 500,
	KindOI:      200,
	KindFunding: 100,
	KindLS:      100,
	KindBooks:   1,
}

// Cap returns the retention limit for a kind.
func Cap(kind Kind) int { return caps[kind] }

const schemaVersion = 1

// Store wraps the sqlite handle. Writes are serialized through mu; sqlite
// allows many readers under WAL.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
	log  zerolog.Logger
}

// Open creates or opens the database, verifies integrity and applies
// migrations.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s := &Store{db: db, path: path, log: log.With().Str("component", "store").Logger()}

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: quick_check: %v", ErrCorrupt, err)
	}
	if check != "ok" {
		db.Close()
		return nil, fmt.Errorf("%w: quick_check: %s", ErrCorrupt, check)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the handle.
func (s *Store) Close() error { return s.db.Close() }

// migrate applies the forward-only schema. Every statement is idempotent.
func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
	}
	for _, kind := range []Kind{KindCandles, KindTickers, KindOI, KindFunding, KindLS, KindBooks} {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
				symbol TEXT NOT NULL,
				t INTEGER NOT NULL,
				payload TEXT NOT NULL,
				PRIMARY KEY (symbol, t)
			)`, kind))
	}
	stmts = append(stmts,
		`CREATE TABLE IF NOT EXISTS scan_results (
			symbol TEXT NOT NULL,
			t INTEGER NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (symbol, t)
		)`,
		`CREATE TABLE IF NOT EXISTS active_trades (
			symbol TEXT PRIMARY KEY,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trade_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			closed_at INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS universe (
			symbol TEXT PRIMARY KEY,
			updated_at INTEGER NOT NULL
		)`,
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	case err != nil:
		return fmt.Errorf("migrate: %w", err)
	case version > schemaVersion:
		return fmt.Errorf("%w: schema version %d newer than binary", ErrCorrupt, version)
	}
	return nil
}

// Stats reports row counts per table and the database file size.
func (s *Store) Stats() (map[string]int64, error) {
	tables := []string{
		string(KindCandles), string(KindTickers), string(KindOI),
		string(KindFunding), string(KindLS), string(KindBooks),
		"scan_results", "active_trades", "trade_history", "universe",
	}
	out := make(map[string]int64, len(tables)+1)
	for _, tbl := range tables {
		var n int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + tbl).Scan(&n); err != nil {
			return nil, fmt.Errorf("stats %s: %w", tbl, err)
		}
		out[tbl] = n
	}
	if fi, err := os.Stat(s.path); err == nil {
		out["size_bytes"] = fi.Size()
	}
	return out, nil
}

// Cleanup drops rows older than the retention horizon and compacts.
func (s *Store) Cleanup(days int) error {
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tbl := range []string{
		string(KindCandles), string(KindTickers), string(KindOI),
		string(KindFunding), string(KindLS), string(KindBooks), "scan_results",
	} {
		if _, err := s.db.Exec("DELETE FROM "+tbl+" WHERE t < ?", cutoff); err != nil {
			return fmt.Errorf("cleanup %s: %w", tbl, err)
		}
	}
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("cleanup vacuum: %w", err)
	}
	return nil
}
