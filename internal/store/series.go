package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"PumpSentinel/internal/model"
)

// appendRow upserts one sample; the newer payload replaces an existing row
// at the same timestamp, then the retention cap is enforced.
func (s *Store) appendRow(kind Kind, symbol string, t int64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("append %s %s: %w", kind, symbol, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(fmt.Sprintf(
		`INSERT INTO %s (symbol, t, payload) VALUES (?, ?, ?)
		 ON CONFLICT(symbol, t) DO UPDATE SET payload = excluded.payload`, kind),
		symbol, t, string(data))
	if err != nil {
		return fmt.Errorf("append %s %s: %w", kind, symbol, err)
	}
	_, err = s.db.Exec(fmt.Sprintf(
		`DELETE FROM %s WHERE symbol = ? AND t NOT IN (
			SELECT t FROM %s WHERE symbol = ? ORDER BY t DESC LIMIT ?
		 )`, kind, kind),
		symbol, symbol, caps[kind])
	if err != nil {
		return fmt.Errorf("trim %s %s: %w", kind, symbol, err)
	}
	return nil
}

// latestRows returns the newest n payloads in ascending t order.
func latestRows[T any](s *Store, kind Kind, symbol string, n int) ([]T, error) {
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT payload FROM (
			SELECT t, payload FROM %s WHERE symbol = ? ORDER BY t DESC LIMIT ?
		 ) ORDER BY t ASC`, kind),
		symbol, n)
	if err != nil {
		return nil, fmt.Errorf("latest %s %s: %w", kind, symbol, err)
	}
	defer rows.Close()
	return scanPayloads[T](rows, kind, symbol)
}

// rangeRows returns payloads with from <= t <= to in ascending order.
func rangeRows[T any](s *Store, kind Kind, symbol string, from, to int64) ([]T, error) {
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT payload FROM %s WHERE symbol = ? AND t >= ? AND t <= ? ORDER BY t ASC`, kind),
		symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("range %s %s: %w", kind, symbol, err)
	}
	defer rows.Close()
	return scanPayloads[T](rows, kind, symbol)
}

func scanPayloads[T any](rows *sql.Rows, kind Kind, symbol string) ([]T, error) {
	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s %s: %w", kind, symbol, err)
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", kind, symbol, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Count returns the number of stored samples for a series.
func (s *Store) Count(kind Kind, symbol string) (int, error) {
	var n int
	err := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE symbol = ?`, kind), symbol).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s %s: %w", kind, symbol, err)
	}
	return n, nil
}

// SeriesCounts returns the counts that drive bootstrap-vs-incremental.
type SeriesCounts struct {
	Candles int
	OI      int
	Funding int
	LS      int
}

func (s *Store) CountsFor(symbol string) (SeriesCounts, error) {
	var sc SeriesCounts
	var err error
	if sc.Candles, err = s.Count(KindCandles, symbol); err != nil {
		return sc, err
	}
	if sc.OI, err = s.Count(KindOI, symbol); err != nil {
		return sc, err
	}
	if sc.Funding, err = s.Count(KindFunding, symbol); err != nil {
		return sc, err
	}
	if sc.LS, err = s.Count(KindLS, symbol); err != nil {
		return sc, err
	}
	return sc, nil
}

func (s *Store) AppendCandle(symbol string, c model.Candle) error {
	return s.appendRow(KindCandles, symbol, c.T, c)
}

func (s *Store) Candles(symbol string, n int) ([]model.Candle, error) {
	return latestRows[model.Candle](s, KindCandles, symbol, n)
}

func (s *Store) CandleRange(symbol string, from, to int64) ([]model.Candle, error) {
	return rangeRows[model.Candle](s, KindCandles, symbol, from, to)
}

func (s *Store) AppendTicker(symbol string, t model.Ticker) error {
	return s.appendRow(KindTickers, symbol, t.T, t)
}

func (s *Store) Tickers(symbol string, n int) ([]model.Ticker, error) {
	return latestRows[model.Ticker](s, KindTickers, symbol, n)
}

func (s *Store) AppendOI(symbol string, p model.OIPoint) error {
	return s.appendRow(KindOI, symbol, p.T, p)
}

func (s *Store) OI(symbol string, n int) ([]model.OIPoint, error) {
	return latestRows[model.OIPoint](s, KindOI, symbol, n)
}

func (s *Store) AppendFunding(symbol string, p model.FundingPoint) error {
	return s.appendRow(KindFunding, symbol, p.T, p)
}

func (s *Store) Funding(symbol string, n int) ([]model.FundingPoint, error) {
	return latestRows[model.FundingPoint](s, KindFunding, symbol, n)
}

func (s *Store) AppendLS(symbol string, p model.LSPoint) error {
	return s.appendRow(KindLS, symbol, p.T, p)
}

func (s *Store) LS(symbol string, n int) ([]model.LSPoint, error) {
	return latestRows[model.LSPoint](s, KindLS, symbol, n)
}

// AppendBook stores the latest snapshot; the cap of 1 evicts older ones.
func (s *Store) AppendBook(symbol string, b model.BookSnapshot) error {
	return s.appendRow(KindBooks, symbol, b.T, b)
}

func (s *Store) LatestBook(symbol string) (model.BookSnapshot, bool, error) {
	books, err := latestRows[model.BookSnapshot](s, KindBooks, symbol, 1)
	if err != nil || len(books) == 0 {
		return model.BookSnapshot{}, false, err
	}
	return books[0], true, nil
}
