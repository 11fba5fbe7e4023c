package market

import (
	"context"
	"fmt"
	"sync"

	"PumpSentinel/internal/model"
)

// MockSource is an in-memory Source for tests and dry runs. Zero-value
// fields behave as absent series.
type MockSource struct {
	mu sync.Mutex

	name    string
	Symbols []string
	Candles map[string][]model.Candle
	Tickers map[string]model.ExchangeTicker
	OI      map[string][]TimedValue
	Funding map[string][]TimedValue
	LS      map[string][]TimedValue
	Books   map[string]model.OrderBook

	// Fail maps an op name to an error every call returns.
	Fail map[string]error

	Calls []string
}

// NewMockSource builds an empty mock venue.
func NewMockSource(name string) *MockSource {
	return &MockSource{
		name:    name,
		Candles: map[string][]model.Candle{},
		Tickers: map[string]model.ExchangeTicker{},
		OI:      map[string][]TimedValue{},
		Funding: map[string][]TimedValue{},
		LS:      map[string][]TimedValue{},
		Books:   map[string]model.OrderBook{},
		Fail:    map[string]error{},
	}
}

func (m *MockSource) Name() string { return m.name }

func (m *MockSource) record(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, op)
	return m.Fail[op]
}

func (m *MockSource) absent(op, symbol string) error {
	return &FetchError{Exchange: m.name, Op: op, Symbol: symbol, Kind: KindAbsent,
		Err: fmt.Errorf("no data")}
}

func (m *MockSource) ListFuturesSymbols(context.Context) ([]string, error) {
	if err := m.record("list"); err != nil {
		return nil, err
	}
	return append([]string(nil), m.Symbols...), nil
}

func (m *MockSource) FetchCandles(_ context.Context, symbol string, limit int) ([]model.Candle, error) {
	if err := m.record("candles"); err != nil {
		return nil, err
	}
	c := m.Candles[symbol]
	if len(c) == 0 {
		return nil, m.absent("candles", symbol)
	}
	if len(c) > limit {
		c = c[len(c)-limit:]
	}
	return append([]model.Candle(nil), c...), nil
}

func (m *MockSource) FetchTicker(_ context.Context, symbol string) (model.ExchangeTicker, error) {
	if err := m.record("ticker"); err != nil {
		return model.ExchangeTicker{}, err
	}
	t, ok := m.Tickers[symbol]
	if !ok {
		return model.ExchangeTicker{}, m.absent("ticker", symbol)
	}
	return t, nil
}

func (m *MockSource) FetchOpenInterest(ctx context.Context, symbol string) (float64, error) {
	points, err := m.FetchOpenInterestHistory(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	return points[len(points)-1].V, nil
}

func (m *MockSource) FetchOpenInterestHistory(_ context.Context, symbol string, limit int) ([]TimedValue, error) {
	if err := m.record("oi"); err != nil {
		return nil, err
	}
	return m.history(m.OI[symbol], "oi", symbol, limit)
}

func (m *MockSource) FetchFunding(ctx context.Context, symbol string) (float64, error) {
	points, err := m.FetchFundingHistory(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	return points[len(points)-1].V, nil
}

func (m *MockSource) FetchFundingHistory(_ context.Context, symbol string, limit int) ([]TimedValue, error) {
	if err := m.record("funding"); err != nil {
		return nil, err
	}
	return m.history(m.Funding[symbol], "funding", symbol, limit)
}

func (m *MockSource) FetchLSRatio(ctx context.Context, symbol string) (float64, error) {
	points, err := m.FetchLSRatioHistory(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	return points[len(points)-1].V, nil
}

func (m *MockSource) FetchLSRatioHistory(_ context.Context, symbol string, limit int) ([]TimedValue, error) {
	if err := m.record("ls"); err != nil {
		return nil, err
	}
	return m.history(m.LS[symbol], "ls", symbol, limit)
}

func (m *MockSource) FetchBook(_ context.Context, symbol string, _ int) (model.OrderBook, error) {
	if err := m.record("book"); err != nil {
		return model.OrderBook{}, err
	}
	b, ok := m.Books[symbol]
	if !ok {
		return model.OrderBook{}, m.absent("book", symbol)
	}
	return b, nil
}

func (m *MockSource) history(points []TimedValue, op, symbol string, limit int) ([]TimedValue, error) {
	if len(points) == 0 {
		return nil, m.absent(op, symbol)
	}
	if len(points) > limit {
		points = points[len(points)-limit:]
	}
	return append([]TimedValue(nil), points...), nil
}
