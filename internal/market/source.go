// Package market provides a uniform view over exchange futures APIs.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"PumpSentinel/internal/config"
	"PumpSentinel/internal/model"
)

const requestTimeout = 8 * time.Second

// TimedValue is one point of a scalar history series.
type TimedValue struct {
	T int64
	V float64
}

// Source is one exchange's market-data surface. Symbols are base assets
// ("TOKENX"); adapters map them to venue contract names. Missing data comes
// back as a KindAbsent error, never as zero.
type Source interface {
	Name() string
	ListFuturesSymbols(ctx context.Context) ([]string, error)
	FetchCandles(ctx context.Context, symbol string, limit int) ([]model.Candle, error)
	FetchTicker(ctx context.Context, symbol string) (model.ExchangeTicker, error)
	FetchOpenInterest(ctx context.Context, symbol string) (float64, error)
	FetchOpenInterestHistory(ctx context.Context, symbol string, limit int) ([]TimedValue, error)
	FetchFunding(ctx context.Context, symbol string) (float64, error)
	FetchFundingHistory(ctx context.Context, symbol string, limit int) ([]TimedValue, error)
	FetchLSRatio(ctx context.Context, symbol string) (float64, error)
	FetchLSRatioHistory(ctx context.Context, symbol string, limit int) ([]TimedValue, error)
	FetchBook(ctx context.Context, symbol string, depth int) (model.OrderBook, error)
}

// New builds the adapter for a configured exchange.
func New(cfg config.Exchange, log zerolog.Logger) (Source, error) {
	switch cfg.Name {
	case "binance":
		return newBinance(log), nil
	case "bybit":
		return newBybit(log), nil
	case "mock":
		return NewMockSource("mock"), nil
	default:
		return nil, fmt.Errorf("unknown exchange %q", cfg.Name)
	}
}

// WithRetry runs fn up to attempts times, backing off exponentially with
// jitter on transient errors. Permanent and absent errors return at once.
func WithRetry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	backoff := 500 * time.Millisecond
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		wait := backoff + time.Duration(rand.Int63n(int64(backoff/2)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
	return err
}

// httpClient is the shared transport for both adapters.
type httpClient struct {
	exchange string
	base     string
	client   *http.Client
	limiter  *Limiter
	log      zerolog.Logger
}

func newHTTPClient(exchange, base string, perSecond, burst int, log zerolog.Logger) *httpClient {
	return &httpClient{
		exchange: exchange,
		base:     base,
		client:   &http.Client{Timeout: requestTimeout},
		limiter:  NewLimiter(perSecond, burst),
		log:      log.With().Str("exchange", exchange).Logger(),
	}
}

// getJSON fetches base+path and decodes the body into out, classifying
// failures by status code.
func (c *httpClient) getJSON(ctx context.Context, op, symbol, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &FetchError{Exchange: c.exchange, Op: op, Symbol: symbol, Kind: KindTransient, Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return &FetchError{Exchange: c.exchange, Op: op, Symbol: symbol, Kind: KindPermanent, Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &FetchError{Exchange: c.exchange, Op: op, Symbol: symbol, Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &FetchError{Exchange: c.exchange, Op: op, Symbol: symbol, Kind: KindTransient, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &FetchError{Exchange: c.exchange, Op: op, Symbol: symbol, Kind: KindTransient,
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusNotFound:
		return &FetchError{Exchange: c.exchange, Op: op, Symbol: symbol, Kind: KindAbsent,
			Err: fmt.Errorf("status 404")}
	default:
		return &FetchError{Exchange: c.exchange, Op: op, Symbol: symbol, Kind: KindPermanent,
			Err: fmt.Errorf("status %d: %.200s", resp.StatusCode, body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Exchange: c.exchange, Op: op, Symbol: symbol, Kind: KindPermanent,
			Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// absent builds the not-published error for a series.
func (c *httpClient) absent(op, symbol string) error {
	return &FetchError{Exchange: c.exchange, Op: op, Symbol: symbol, Kind: KindAbsent,
		Err: fmt.Errorf("no data")}
}

// atof parses exchange string numbers, tolerating raw float64 from mixed
// JSON arrays.
func atof(v any) (float64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	case json.Number:
		return x.Float64()
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// parseLevels turns [["price","qty"], …] into book levels.
func parseLevels(rows [][]string) ([]model.BookLevel, error) {
	out := make([]model.BookLevel, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			return nil, fmt.Errorf("short level row")
		}
		p, err := strconv.ParseFloat(r[0], 64)
		if err != nil {
			return nil, err
		}
		a, err := strconv.ParseFloat(r[1], 64)
		if err != nil {
			return nil, err
		}
		out = append(out, model.BookLevel{Price: p, Amount: a})
	}
	return out, nil
}
