package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"PumpSentinel/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.AppendCandle("TOKENX", model.Candle{T: 1, Close: 1}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	candles, err := s.Candles("TOKENX", 10)
	if err != nil || len(candles) != 1 {
		t.Errorf("candles = %v err = %v", candles, err)
	}
}

func TestOpenDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.db")
	if err := os.WriteFile(path, []byte("SQLite format 3\x00 garbage garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error on corrupt file")
	}
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestAppendIdempotentOnTimestamp(t *testing.T) {
	s := openTemp(t)
	if err := s.AppendCandle("TOKENX", model.Candle{T: 100, Close: 1.0}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendCandle("TOKENX", model.Candle{T: 100, Close: 2.0}); err != nil {
		t.Fatal(err)
	}
	candles, err := s.Candles("TOKENX", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 1 || candles[0].Close != 2.0 {
		t.Errorf("candles = %v, want single row with newer payload", candles)
	}
}

func TestRetentionCap(t *testing.T) {
	s := openTemp(t)
	for i := 0; i < 120; i++ {
		if err := s.AppendFunding("TOKENX", model.FundingPoint{
			T: int64(i), RateByExchange: map[string]float64{"binance": 0.0001},
		}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.Count(KindFunding, "TOKENX")
	if err != nil {
		t.Fatal(err)
	}
	if n != Cap(KindFunding) {
		t.Errorf("count = %d, want %d", n, Cap(KindFunding))
	}
	points, err := s.Funding("TOKENX", 200)
	if err != nil {
		t.Fatal(err)
	}
	// Oldest rows evicted, ascending order preserved.
	if points[0].T != 20 || points[len(points)-1].T != 119 {
		t.Errorf("range = [%d, %d], want [20, 119]", points[0].T, points[len(points)-1].T)
	}
	for i := 1; i < len(points); i++ {
		if points[i].T <= points[i-1].T {
			t.Fatal("not ascending")
		}
	}
}

func TestBookKeepsLatestOnly(t *testing.T) {
	s := openTemp(t)
	for i := 0; i < 3; i++ {
		err := s.AppendBook("TOKENX", model.BookSnapshot{
			T: int64(i),
			PerExchange: map[string]model.OrderBook{
				"binance": {Bids: []model.BookLevel{{Price: float64(i), Amount: 1}}},
			},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	book, ok, err := s.LatestBook("TOKENX")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if book.T != 2 {
		t.Errorf("latest book T = %d, want 2", book.T)
	}
	n, _ := s.Count(KindBooks, "TOKENX")
	if n != 1 {
		t.Errorf("book rows = %d, want 1", n)
	}
}

func TestCandleRange(t *testing.T) {
	s := openTemp(t)
	for i := 0; i < 10; i++ {
		if err := s.AppendCandle("TOKENX", model.Candle{T: int64(i * 10), Close: float64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	candles, err := s.CandleRange("TOKENX", 20, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 4 || candles[0].T != 20 || candles[3].T != 50 {
		t.Errorf("range = %v", candles)
	}
}

func TestCountsForBootstrapDecision(t *testing.T) {
	s := openTemp(t)
	for i := 0; i < 5; i++ {
		if err := s.AppendOI("TOKENX", model.OIPoint{T: int64(i), USDByExchange: map[string]float64{"b": 1}}); err != nil {
			t.Fatal(err)
		}
	}
	sc, err := s.CountsFor("TOKENX")
	if err != nil {
		t.Fatal(err)
	}
	if sc.OI != 5 || sc.Candles != 0 || sc.Funding != 0 || sc.LS != 0 {
		t.Errorf("counts = %+v", sc)
	}
}

func TestScanResultHistory(t *testing.T) {
	s := openTemp(t)
	for i := 0; i < 15; i++ {
		err := s.SaveScanResult(&model.ScanResult{
			Symbol: "TOKENX", T: int64(i), FinalScore: float64(i),
			Classification: model.ClassMonitor,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	results, err := s.LastScanResults("TOKENX", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].T != 14 || results[1].T != 13 {
		t.Errorf("results = %v, want newest first", results)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM scan_results WHERE symbol = 'TOKENX'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != scanResultKeep {
		t.Errorf("kept = %d, want %d", n, scanResultKeep)
	}
}

func TestLatestResultsAcrossSymbols(t *testing.T) {
	s := openTemp(t)
	for _, sym := range []string{"AAA", "BBB"} {
		for i := 0; i < 3; i++ {
			if err := s.SaveScanResult(&model.ScanResult{Symbol: sym, T: int64(i), FinalScore: float64(i)}); err != nil {
				t.Fatal(err)
			}
		}
	}
	results, err := s.LatestResults()
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.T != 2 {
			t.Errorf("%s latest T = %d, want 2", r.Symbol, r.T)
		}
	}
}

func TestTradeLifecycle(t *testing.T) {
	s := openTemp(t)
	trade := &model.Trade{Symbol: "TOKENX", EntryPrice: 1.0, SizeUSD: 1000, Remaining: 1}
	if err := s.SaveTrade(trade); err != nil {
		t.Fatal(err)
	}

	loaded, ok, err := s.Trade("TOKENX")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if loaded.EntryPrice != 1.0 {
		t.Errorf("entry = %v", loaded.EntryPrice)
	}

	trade.CurrentStop = 0.99
	if err := s.SaveTrade(trade); err != nil {
		t.Fatal(err)
	}
	active, err := s.ActiveTrades()
	if err != nil || len(active) != 1 {
		t.Fatalf("active = %v err = %v", active, err)
	}
	if active[0].CurrentStop != 0.99 {
		t.Errorf("stop = %v, want updated", active[0].CurrentStop)
	}

	err = s.CloseTrade(&model.ClosedTrade{Symbol: "TOKENX", ClosedAt: 123, TotalPnL: 50, Reason: "STOP_HIT"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Trade("TOKENX"); ok {
		t.Error("trade still active after close")
	}
	hist, err := s.TradeHistory(5)
	if err != nil || len(hist) != 1 || hist[0].Reason != "STOP_HIT" {
		t.Errorf("history = %v err = %v", hist, err)
	}
}

func TestUniverseCache(t *testing.T) {
	s := openTemp(t)
	if err := s.SaveUniverse([]string{"BBB", "AAA"}); err != nil {
		t.Fatal(err)
	}
	symbols, updated, err := s.Universe()
	if err != nil {
		t.Fatal(err)
	}
	if len(symbols) != 2 || symbols[0] != "AAA" || updated == 0 {
		t.Errorf("universe = %v at %d", symbols, updated)
	}
	// Replacement drops stale entries.
	if err := s.SaveUniverse([]string{"CCC"}); err != nil {
		t.Fatal(err)
	}
	symbols, _, _ = s.Universe()
	if len(symbols) != 1 || symbols[0] != "CCC" {
		t.Errorf("universe = %v", symbols)
	}
}

func TestStatsAndCleanup(t *testing.T) {
	s := openTemp(t)
	if err := s.AppendCandle("TOKENX", model.Candle{T: 1, Close: 1}); err != nil {
		t.Fatal(err)
	}
	stats, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats["candles"] != 1 {
		t.Errorf("stats = %v", stats)
	}
	// T=1ms is far past any retention horizon.
	if err := s.Cleanup(30); err != nil {
		t.Fatal(err)
	}
	n, _ := s.Count(KindCandles, "TOKENX")
	if n != 0 {
		t.Errorf("candles after cleanup = %d, want 0", n)
	}
}
