package market

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"PumpSentinel/internal/model"
)

// binance talks to the USDⓈ-M futures REST API.
type binance struct {
	http *httpClient
}

func newBinance(log zerolog.Logger) *binance {
	// Weight limits allow well over 10 req/s for these endpoints.
	return &binance{http: newHTTPClient("binance", "https://fapi.binance.com", 8, 16, log)}
}

func (b *binance) Name() string { return "binance" }

// contract maps a base asset to the venue's USDT perpetual name.
func (b *binance) contract(symbol string) string { return symbol + "USDT" }

func (b *binance) ListFuturesSymbols(ctx context.Context) ([]string, error) {
	var resp struct {
		Symbols []struct {
			BaseAsset    string `json:"baseAsset"`
			QuoteAsset   string `json:"quoteAsset"`
			ContractType string `json:"contractType"`
			Status       string `json:"status"`
		} `json:"symbols"`
	}
	if err := b.http.getJSON(ctx, "exchangeInfo", "", "/fapi/v1/exchangeInfo", &resp); err != nil {
		return nil, err
	}
	var out []string
	for _, s := range resp.Symbols {
		if s.ContractType == "PERPETUAL" && s.QuoteAsset == "USDT" && s.Status == "TRADING" {
			out = append(out, s.BaseAsset)
		}
	}
	return out, nil
}

func (b *binance) FetchCandles(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	var rows [][]any
	path := fmt.Sprintf("/fapi/v1/klines?symbol=%s&interval=1h&limit=%d", b.contract(symbol), limit)
	if err := b.http.getJSON(ctx, "klines", symbol, path, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			continue
		}
		t, err := atof(r[0])
		if err != nil {
			continue
		}
		o, e1 := atof(r[1])
		h, e2 := atof(r[2])
		l, e3 := atof(r[3])
		c, e4 := atof(r[4])
		v, e5 := atof(r[5])
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
			continue
		}
		out = append(out, model.Candle{T: int64(t), Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	if len(out) == 0 {
		return nil, b.http.absent("klines", symbol)
	}
	return out, nil
}

func (b *binance) FetchTicker(ctx context.Context, symbol string) (model.ExchangeTicker, error) {
	var day struct {
		LastPrice   string `json:"lastPrice"`
		QuoteVolume string `json:"quoteVolume"`
	}
	path := "/fapi/v1/ticker/24hr?symbol=" + b.contract(symbol)
	if err := b.http.getJSON(ctx, "ticker24h", symbol, path, &day); err != nil {
		return model.ExchangeTicker{}, err
	}
	var book struct {
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
	}
	path = "/fapi/v1/ticker/bookTicker?symbol=" + b.contract(symbol)
	if err := b.http.getJSON(ctx, "bookTicker", symbol, path, &book); err != nil {
		return model.ExchangeTicker{}, err
	}
	price, err := atof(day.LastPrice)
	if err != nil {
		return model.ExchangeTicker{}, b.http.absent("ticker24h", symbol)
	}
	vol, _ := atof(day.QuoteVolume)
	bid, _ := atof(book.BidPrice)
	ask, _ := atof(book.AskPrice)
	return model.ExchangeTicker{Price: price, QuoteVol: vol, Bid: bid, Ask: ask}, nil
}

func (b *binance) FetchOpenInterest(ctx context.Context, symbol string) (float64, error) {
	points, err := b.FetchOpenInterestHistory(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	return points[len(points)-1].V, nil
}

func (b *binance) FetchOpenInterestHistory(ctx context.Context, symbol string, limit int) ([]TimedValue, error) {
	var rows []struct {
		SumOpenInterestValue string `json:"sumOpenInterestValue"`
		Timestamp            int64  `json:"timestamp"`
	}
	path := fmt.Sprintf("/futures/data/openInterestHist?symbol=%s&period=1h&limit=%d", b.contract(symbol), limit)
	if err := b.http.getJSON(ctx, "openInterestHist", symbol, path, &rows); err != nil {
		return nil, err
	}
	out := make([]TimedValue, 0, len(rows))
	for _, r := range rows {
		v, err := atof(r.SumOpenInterestValue)
		if err != nil {
			continue
		}
		out = append(out, TimedValue{T: r.Timestamp, V: v})
	}
	if len(out) == 0 {
		return nil, b.http.absent("openInterestHist", symbol)
	}
	return out, nil
}

func (b *binance) FetchFunding(ctx context.Context, symbol string) (float64, error) {
	var resp struct {
		LastFundingRate string `json:"lastFundingRate"`
	}
	path := "/fapi/v1/premiumIndex?symbol=" + b.contract(symbol)
	if err := b.http.getJSON(ctx, "premiumIndex", symbol, path, &resp); err != nil {
		return 0, err
	}
	rate, err := atof(resp.LastFundingRate)
	if err != nil {
		return 0, b.http.absent("premiumIndex", symbol)
	}
	return rate, nil
}

func (b *binance) FetchFundingHistory(ctx context.Context, symbol string, limit int) ([]TimedValue, error) {
	var rows []struct {
		FundingRate string `json:"fundingRate"`
		FundingTime int64  `json:"fundingTime"`
	}
	path := fmt.Sprintf("/fapi/v1/fundingRate?symbol=%s&limit=%d", b.contract(symbol), limit)
	if err := b.http.getJSON(ctx, "fundingRate", symbol, path, &rows); err != nil {
		return nil, err
	}
	out := make([]TimedValue, 0, len(rows))
	for _, r := range rows {
		v, err := atof(r.FundingRate)
		if err != nil {
			continue
		}
		out = append(out, TimedValue{T: r.FundingTime, V: v})
	}
	if len(out) == 0 {
		return nil, b.http.absent("fundingRate", symbol)
	}
	return out, nil
}

func (b *binance) FetchLSRatio(ctx context.Context, symbol string) (float64, error) {
	points, err := b.FetchLSRatioHistory(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	return points[len(points)-1].V, nil
}

func (b *binance) FetchLSRatioHistory(ctx context.Context, symbol string, limit int) ([]TimedValue, error) {
	var rows []struct {
		LongShortRatio string `json:"longShortRatio"`
		Timestamp      int64  `json:"timestamp"`
	}
	path := fmt.Sprintf("/futures/data/globalLongShortAccountRatio?symbol=%s&period=1h&limit=%d", b.contract(symbol), limit)
	if err := b.http.getJSON(ctx, "longShortRatio", symbol, path, &rows); err != nil {
		return nil, err
	}
	out := make([]TimedValue, 0, len(rows))
	for _, r := range rows {
		v, err := atof(r.LongShortRatio)
		if err != nil {
			continue
		}
		out = append(out, TimedValue{T: r.Timestamp, V: v})
	}
	if len(out) == 0 {
		return nil, b.http.absent("longShortRatio", symbol)
	}
	return out, nil
}

func (b *binance) FetchBook(ctx context.Context, symbol string, depth int) (model.OrderBook, error) {
	var resp struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	path := fmt.Sprintf("/fapi/v1/depth?symbol=%s&limit=%d", b.contract(symbol), depth)
	if err := b.http.getJSON(ctx, "depth", symbol, path, &resp); err != nil {
		return model.OrderBook{}, err
	}
	bids, err := parseLevels(resp.Bids)
	if err != nil {
		return model.OrderBook{}, b.http.absent("depth", symbol)
	}
	asks, err := parseLevels(resp.Asks)
	if err != nil {
		return model.OrderBook{}, b.http.absent("depth", symbol)
	}
	return model.OrderBook{Bids: bids, Asks: asks}, nil
}
