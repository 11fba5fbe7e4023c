package market

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"PumpSentinel/internal/model"
)

// bybit talks to the v5 public API, linear category.
type bybit struct {
	http *httpClient
}

func newBybit(log zerolog.Logger) *bybit {
	return &bybit{http: newHTTPClient("bybit", "https://api.bybit.com", 8, 16, log)}
}

func (b *bybit) Name() string { return "bybit" }

func (b *bybit) contract(symbol string) string { return symbol + "USDT" }

// envelope is the common v5 response wrapper.
type bybitEnvelope[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

// check classifies a v5 retCode. 10001 covers parameter errors including
// unknown symbols.
func (b *bybit) check(op, symbol string, code int, msg string) error {
	switch {
	case code == 0:
		return nil
	case code == 10001 && strings.Contains(strings.ToLower(msg), "symbol"):
		return &FetchError{Exchange: "bybit", Op: op, Symbol: symbol, Kind: KindAbsent,
			Err: fmt.Errorf("retCode %d: %s", code, msg)}
	case code == 10006 || code == 10016:
		return &FetchError{Exchange: "bybit", Op: op, Symbol: symbol, Kind: KindTransient,
			Err: fmt.Errorf("retCode %d: %s", code, msg)}
	default:
		return &FetchError{Exchange: "bybit", Op: op, Symbol: symbol, Kind: KindPermanent,
			Err: fmt.Errorf("retCode %d: %s", code, msg)}
	}
}

func (b *bybit) ListFuturesSymbols(ctx context.Context) ([]string, error) {
	var resp bybitEnvelope[struct {
		List []struct {
			Symbol    string `json:"symbol"`
			BaseCoin  string `json:"baseCoin"`
			QuoteCoin string `json:"quoteCoin"`
			Status    string `json:"status"`
		} `json:"list"`
	}]
	path := "/v5/market/instruments-info?category=linear&limit=1000"
	if err := b.http.getJSON(ctx, "instruments", "", path, &resp); err != nil {
		return nil, err
	}
	if err := b.check("instruments", "", resp.RetCode, resp.RetMsg); err != nil {
		return nil, err
	}
	var out []string
	for _, s := range resp.Result.List {
		if s.Status == "Trading" && s.QuoteCoin == "USDT" && s.Symbol == s.BaseCoin+"USDT" {
			out = append(out, s.BaseCoin)
		}
	}
	return out, nil
}

func (b *bybit) FetchCandles(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	var resp bybitEnvelope[struct {
		List [][]string `json:"list"`
	}]
	path := fmt.Sprintf("/v5/market/kline?category=linear&symbol=%s&interval=60&limit=%d", b.contract(symbol), limit)
	if err := b.http.getJSON(ctx, "kline", symbol, path, &resp); err != nil {
		return nil, err
	}
	if err := b.check("kline", symbol, resp.RetCode, resp.RetMsg); err != nil {
		return nil, err
	}
	// Rows arrive newest first: [start, open, high, low, close, volume, turnover].
	out := make([]model.Candle, 0, len(resp.Result.List))
	for i := len(resp.Result.List) - 1; i >= 0; i-- {
		r := resp.Result.List[i]
		if len(r) < 6 {
			continue
		}
		t, e0 := atof(r[0])
		o, e1 := atof(r[1])
		h, e2 := atof(r[2])
		l, e3 := atof(r[3])
		c, e4 := atof(r[4])
		v, e5 := atof(r[5])
		if e0 != nil || e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
			continue
		}
		out = append(out, model.Candle{T: int64(t), Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	if len(out) == 0 {
		return nil, b.http.absent("kline", symbol)
	}
	return out, nil
}

// tickerRow is the shared shape of /v5/market/tickers entries.
type bybitTicker struct {
	LastPrice         string `json:"lastPrice"`
	Turnover24h       string `json:"turnover24h"`
	Bid1Price         string `json:"bid1Price"`
	Ask1Price         string `json:"ask1Price"`
	FundingRate       string `json:"fundingRate"`
	OpenInterestValue string `json:"openInterestValue"`
}

func (b *bybit) ticker(ctx context.Context, symbol string) (bybitTicker, error) {
	var resp bybitEnvelope[struct {
		List []bybitTicker `json:"list"`
	}]
	path := "/v5/market/tickers?category=linear&symbol=" + b.contract(symbol)
	if err := b.http.getJSON(ctx, "tickers", symbol, path, &resp); err != nil {
		return bybitTicker{}, err
	}
	if err := b.check("tickers", symbol, resp.RetCode, resp.RetMsg); err != nil {
		return bybitTicker{}, err
	}
	if len(resp.Result.List) == 0 {
		return bybitTicker{}, b.http.absent("tickers", symbol)
	}
	return resp.Result.List[0], nil
}

func (b *bybit) FetchTicker(ctx context.Context, symbol string) (model.ExchangeTicker, error) {
	t, err := b.ticker(ctx, symbol)
	if err != nil {
		return model.ExchangeTicker{}, err
	}
	price, err := atof(t.LastPrice)
	if err != nil {
		return model.ExchangeTicker{}, b.http.absent("tickers", symbol)
	}
	vol, _ := atof(t.Turnover24h)
	bid, _ := atof(t.Bid1Price)
	ask, _ := atof(t.Ask1Price)
	return model.ExchangeTicker{Price: price, QuoteVol: vol, Bid: bid, Ask: ask}, nil
}

func (b *bybit) FetchOpenInterest(ctx context.Context, symbol string) (float64, error) {
	t, err := b.ticker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	v, err := atof(t.OpenInterestValue)
	if err != nil {
		return 0, b.http.absent("tickers", symbol)
	}
	return v, nil
}

func (b *bybit) FetchOpenInterestHistory(ctx context.Context, symbol string, limit int) ([]TimedValue, error) {
	var resp bybitEnvelope[struct {
		List []struct {
			OpenInterest string `json:"openInterest"`
			Timestamp    string `json:"timestamp"`
		} `json:"list"`
	}]
	path := fmt.Sprintf("/v5/market/open-interest?category=linear&symbol=%s&intervalTime=1h&limit=%d", b.contract(symbol), limit)
	if err := b.http.getJSON(ctx, "openInterest", symbol, path, &resp); err != nil {
		return nil, err
	}
	if err := b.check("openInterest", symbol, resp.RetCode, resp.RetMsg); err != nil {
		return nil, err
	}
	// History is in contracts; convert to USD at the current price.
	price, err := b.lastPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out := make([]TimedValue, 0, len(resp.Result.List))
	for i := len(resp.Result.List) - 1; i >= 0; i-- {
		r := resp.Result.List[i]
		oi, e1 := atof(r.OpenInterest)
		ts, e2 := atof(r.Timestamp)
		if e1 != nil || e2 != nil {
			continue
		}
		out = append(out, TimedValue{T: int64(ts), V: oi * price})
	}
	if len(out) == 0 {
		return nil, b.http.absent("openInterest", symbol)
	}
	return out, nil
}

func (b *bybit) lastPrice(ctx context.Context, symbol string) (float64, error) {
	t, err := b.ticker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return atof(t.LastPrice)
}

func (b *bybit) FetchFunding(ctx context.Context, symbol string) (float64, error) {
	t, err := b.ticker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	v, err := atof(t.FundingRate)
	if err != nil {
		return 0, b.http.absent("tickers", symbol)
	}
	return v, nil
}

func (b *bybit) FetchFundingHistory(ctx context.Context, symbol string, limit int) ([]TimedValue, error) {
	var resp bybitEnvelope[struct {
		List []struct {
			FundingRate          string `json:"fundingRate"`
			FundingRateTimestamp string `json:"fundingRateTimestamp"`
		} `json:"list"`
	}]
	path := fmt.Sprintf("/v5/market/funding/history?category=linear&symbol=%s&limit=%d", b.contract(symbol), limit)
	if err := b.http.getJSON(ctx, "fundingHistory", symbol, path, &resp); err != nil {
		return nil, err
	}
	if err := b.check("fundingHistory", symbol, resp.RetCode, resp.RetMsg); err != nil {
		return nil, err
	}
	out := make([]TimedValue, 0, len(resp.Result.List))
	for i := len(resp.Result.List) - 1; i >= 0; i-- {
		r := resp.Result.List[i]
		v, e1 := atof(r.FundingRate)
		ts, e2 := atof(r.FundingRateTimestamp)
		if e1 != nil || e2 != nil {
			continue
		}
		out = append(out, TimedValue{T: int64(ts), V: v})
	}
	if len(out) == 0 {
		return nil, b.http.absent("fundingHistory", symbol)
	}
	return out, nil
}

func (b *bybit) FetchLSRatio(ctx context.Context, symbol string) (float64, error) {
	points, err := b.FetchLSRatioHistory(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	return points[len(points)-1].V, nil
}

func (b *bybit) FetchLSRatioHistory(ctx context.Context, symbol string, limit int) ([]TimedValue, error) {
	var resp bybitEnvelope[struct {
		List []struct {
			BuyRatio  string `json:"buyRatio"`
			SellRatio string `json:"sellRatio"`
			Timestamp string `json:"timestamp"`
		} `json:"list"`
	}]
	path := fmt.Sprintf("/v5/market/account-ratio?category=linear&symbol=%s&period=1h&limit=%d", b.contract(symbol), limit)
	if err := b.http.getJSON(ctx, "accountRatio", symbol, path, &resp); err != nil {
		return nil, err
	}
	if err := b.check("accountRatio", symbol, resp.RetCode, resp.RetMsg); err != nil {
		return nil, err
	}
	out := make([]TimedValue, 0, len(resp.Result.List))
	for i := len(resp.Result.List) - 1; i >= 0; i-- {
		r := resp.Result.List[i]
		buy, e1 := atof(r.BuyRatio)
		sell, e2 := atof(r.SellRatio)
		ts, e3 := atof(r.Timestamp)
		if e1 != nil || e2 != nil || e3 != nil || sell == 0 {
			continue
		}
		out = append(out, TimedValue{T: int64(ts), V: buy / sell})
	}
	if len(out) == 0 {
		return nil, b.http.absent("accountRatio", symbol)
	}
	return out, nil
}

func (b *bybit) FetchBook(ctx context.Context, symbol string, depth int) (model.OrderBook, error) {
	var resp bybitEnvelope[struct {
		Bids [][]string `json:"b"`
		Asks [][]string `json:"a"`
	}]
	path := fmt.Sprintf("/v5/market/orderbook?category=linear&symbol=%s&limit=%d", b.contract(symbol), depth)
	if err := b.http.getJSON(ctx, "orderbook", symbol, path, &resp); err != nil {
		return model.OrderBook{}, err
	}
	if err := b.check("orderbook", symbol, resp.RetCode, resp.RetMsg); err != nil {
		return model.OrderBook{}, err
	}
	bids, err := parseLevels(resp.Result.Bids)
	if err != nil {
		return model.OrderBook{}, b.http.absent("orderbook", symbol)
	}
	asks, err := parseLevels(resp.Result.Asks)
	if err != nil {
		return model.OrderBook{}, b.http.absent("orderbook", symbol)
	}
	return model.OrderBook{Bids: bids, Asks: asks}, nil
}
