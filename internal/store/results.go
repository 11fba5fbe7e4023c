package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PumpSentinel/internal/model"
)

// scanResultKeep bounds per-symbol scan history; the event detector needs
// only the previous one, a few more help the digest.
const scanResultKeep = 10

// SaveScanResult appends a scan result and trims history.
func (s *Store) SaveScanResult(r *model.ScanResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("save scan %s: %w", r.Symbol, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO scan_results (symbol, t, payload) VALUES (?, ?, ?)
		 ON CONFLICT(symbol, t) DO UPDATE SET payload = excluded.payload`,
		r.Symbol, r.T, string(data))
	if err != nil {
		return fmt.Errorf("save scan %s: %w", r.Symbol, err)
	}
	_, err = s.db.Exec(
		`DELETE FROM scan_results WHERE symbol = ? AND t NOT IN (
			SELECT t FROM scan_results WHERE symbol = ? ORDER BY t DESC LIMIT ?
		 )`,
		r.Symbol, r.Symbol, scanResultKeep)
	if err != nil {
		return fmt.Errorf("trim scans %s: %w", r.Symbol, err)
	}
	return nil
}

// LastScanResults returns the newest n results, newest first.
func (s *Store) LastScanResults(symbol string, n int) ([]*model.ScanResult, error) {
	rows, err := s.db.Query(
		`SELECT payload FROM scan_results WHERE symbol = ? ORDER BY t DESC LIMIT ?`,
		symbol, n)
	if err != nil {
		return nil, fmt.Errorf("load scans %s: %w", symbol, err)
	}
	defer rows.Close()
	var out []*model.ScanResult
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("load scans %s: %w", symbol, err)
		}
		var r model.ScanResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("decode scan %s: %w", symbol, err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// LatestResults returns the newest result per symbol at or above a rank,
// for the watchlist command.
func (s *Store) LatestResults() ([]*model.ScanResult, error) {
	rows, err := s.db.Query(
		`SELECT payload FROM scan_results r WHERE t = (
			SELECT MAX(t) FROM scan_results WHERE symbol = r.symbol
		 ) ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("load latest scans: %w", err)
	}
	defer rows.Close()
	var out []*model.ScanResult
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("load latest scans: %w", err)
		}
		var r model.ScanResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("decode latest scans: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// SaveTrade upserts an active trade keyed by symbol.
func (s *Store) SaveTrade(t *model.Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("save trade %s: %w", t.Symbol, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO active_trades (symbol, payload) VALUES (?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET payload = excluded.payload`,
		t.Symbol, string(data))
	if err != nil {
		return fmt.Errorf("save trade %s: %w", t.Symbol, err)
	}
	return nil
}

// Trade loads one active trade.
func (s *Store) Trade(symbol string) (*model.Trade, bool, error) {
	var data string
	err := s.db.QueryRow(`SELECT payload FROM active_trades WHERE symbol = ?`, symbol).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load trade %s: %w", symbol, err)
	}
	var t model.Trade
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, false, fmt.Errorf("decode trade %s: %w", symbol, err)
	}
	return &t, true, nil
}

// ActiveTrades lists all open trades.
func (s *Store) ActiveTrades() ([]*model.Trade, error) {
	rows, err := s.db.Query(`SELECT payload FROM active_trades ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	defer rows.Close()
	var out []*model.Trade
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("load trades: %w", err)
		}
		var t model.Trade
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("decode trades: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// CloseTrade archives a finished trade and removes it from the active set.
func (s *Store) CloseTrade(closed *model.ClosedTrade) error {
	data, err := json.Marshal(closed)
	if err != nil {
		return fmt.Errorf("close trade %s: %w", closed.Symbol, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("close trade %s: %w", closed.Symbol, err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(
		`INSERT INTO trade_history (symbol, closed_at, payload) VALUES (?, ?, ?)`,
		closed.Symbol, closed.ClosedAt, string(data)); err != nil {
		return fmt.Errorf("close trade %s: %w", closed.Symbol, err)
	}
	if _, err := tx.Exec(`DELETE FROM active_trades WHERE symbol = ?`, closed.Symbol); err != nil {
		return fmt.Errorf("close trade %s: %w", closed.Symbol, err)
	}
	return tx.Commit()
}

// TradeHistory returns the most recently closed trades, newest first.
func (s *Store) TradeHistory(limit int) ([]*model.ClosedTrade, error) {
	rows, err := s.db.Query(
		`SELECT payload FROM trade_history ORDER BY closed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("trade history: %w", err)
	}
	defer rows.Close()
	var out []*model.ClosedTrade
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("trade history: %w", err)
		}
		var t model.ClosedTrade
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("decode trade history: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// SaveUniverse replaces the cached symbol universe.
func (s *Store) SaveUniverse(symbols []string) error {
	now := time.Now().UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save universe: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM universe`); err != nil {
		return fmt.Errorf("save universe: %w", err)
	}
	for _, sym := range symbols {
		if _, err := tx.Exec(
			`INSERT INTO universe (symbol, updated_at) VALUES (?, ?)`, sym, now); err != nil {
			return fmt.Errorf("save universe: %w", err)
		}
	}
	return tx.Commit()
}

// Universe returns the cached symbols and the time they were refreshed.
func (s *Store) Universe() ([]string, int64, error) {
	rows, err := s.db.Query(`SELECT symbol, updated_at FROM universe ORDER BY symbol`)
	if err != nil {
		return nil, 0, fmt.Errorf("load universe: %w", err)
	}
	defer rows.Close()
	var symbols []string
	var updated int64
	for rows.Next() {
		var sym string
		var at int64
		if err := rows.Scan(&sym, &at); err != nil {
			return nil, 0, fmt.Errorf("load universe: %w", err)
		}
		symbols = append(symbols, sym)
		updated = at
	}
	return symbols, updated, rows.Err()
}
