package model

import "sort"

// Quality grades how sufficient the input data behind a value was.
type Quality string

const (
	QualityHigh Quality = "HIGH"
	QualityMed  Quality = "MED"
	QualityLow  Quality = "LOW"
)

var qualityRank = map[Quality]int{QualityLow: 0, QualityMed: 1, QualityHigh: 2}

// MinQuality returns the lower of the two grades.
func MinQuality(a, b Quality) Quality {
	if qualityRank[a] <= qualityRank[b] {
		return a
	}
	return b
}

// Candle is a single hourly OHLCV bar. T is the open time in milliseconds.
type Candle struct {
	T      int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

// ExchangeTicker is one exchange's view of a symbol.
type ExchangeTicker struct {
	Price    float64 `json:"price"`
	QuoteVol float64 `json:"quote_vol"`
	Bid      float64 `json:"bid"`
	Ask      float64 `json:"ask"`
}

// Ticker aggregates per-exchange tickers at one point in time. Price, Bid
// and Ask come from the exchange with the highest quote volume; QuoteVol is
// the sum across exchanges.
type Ticker struct {
	T           int64                     `json:"t"`
	Price       float64                   `json:"price"`
	QuoteVol    float64                   `json:"quote_vol"`
	Bid         float64                   `json:"bid"`
	Ask         float64                   `json:"ask"`
	PerExchange map[string]ExchangeTicker `json:"per_exchange,omitempty"`
}

// OIPoint is open interest in USD, keyed by exchange.
type OIPoint struct {
	T             int64              `json:"t"`
	USDByExchange map[string]float64 `json:"usd_by_exchange"`
}

// Total sums open interest across exchanges.
func (p OIPoint) Total() float64 {
	var sum float64
	for _, v := range p.USDByExchange {
		sum += v
	}
	return sum
}

// FundingPoint is a funding-rate sample keyed by exchange.
type FundingPoint struct {
	T              int64              `json:"t"`
	RateByExchange map[string]float64 `json:"rate_by_exchange"`
}

// Mean averages the rate across exchanges; ok is false when empty.
func (p FundingPoint) Mean() (float64, bool) {
	if len(p.RateByExchange) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range p.RateByExchange {
		sum += v
	}
	return sum / float64(len(p.RateByExchange)), true
}

// LSPoint is a long/short account ratio sample keyed by exchange.
type LSPoint struct {
	T               int64              `json:"t"`
	RatioByExchange map[string]float64 `json:"ratio_by_exchange"`
}

// Mean averages the ratio across exchanges; ok is false when empty.
func (p LSPoint) Mean() (float64, bool) {
	if len(p.RatioByExchange) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range p.RatioByExchange {
		sum += v
	}
	return sum / float64(len(p.RatioByExchange)), true
}

// BookLevel is one price level of an order book.
type BookLevel struct {
	Price  float64 `json:"p"`
	Amount float64 `json:"a"`
}

// USD returns the notional value of the level.
func (l BookLevel) USD() float64 { return l.Price * l.Amount }

// OrderBook holds up to 50 levels per side, bids descending, asks ascending.
type OrderBook struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// BookSnapshot is the latest order book per exchange. Ephemeral: the store
// keeps only the most recent snapshot per symbol.
type BookSnapshot struct {
	T           int64                `json:"t"`
	PerExchange map[string]OrderBook `json:"per_exchange"`
}

// Merged combines all exchanges into one book, bids sorted descending and
// asks ascending by price.
func (s BookSnapshot) Merged() OrderBook {
	var ob OrderBook
	for _, b := range s.PerExchange {
		ob.Bids = append(ob.Bids, b.Bids...)
		ob.Asks = append(ob.Asks, b.Asks...)
	}
	sort.Slice(ob.Bids, func(i, j int) bool { return ob.Bids[i].Price > ob.Bids[j].Price })
	sort.Slice(ob.Asks, func(i, j int) bool { return ob.Asks[i].Price < ob.Asks[j].Price })
	return ob
}
