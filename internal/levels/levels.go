// Package levels derives the trade geometry for alert-worthy symbols:
// protective stop, entry band, staggered take profits and sizing.
package levels

import (
	"fmt"
	"math"

	"PumpSentinel/internal/feature"
	"PumpSentinel/internal/model"
)

const (
	stopPctMin = 0.025
	stopPctMax = 0.15
)

// Params carries the account sizing knobs.
type Params struct {
	AccountUSD float64
	RiskPct    float64
}

// Inputs is everything the engine needs for one symbol.
type Inputs struct {
	Price          float64
	Candles        []model.Candle
	Book           model.OrderBook
	Quality        model.Quality
	CascadeRatio   float64
	Classification model.Classification
}

type candidate struct {
	price  float64
	method string
}

// Compute derives the full level set. It fails when candles cannot support
// an ATR or when volatility leaves no stop inside bounds.
func Compute(in Inputs, p Params) (*model.Levels, error) {
	atr, ok := feature.ATR(in.Candles, 14)
	if !ok || atr <= 0 {
		return nil, fmt.Errorf("levels %s: insufficient candles for ATR", in.Classification)
	}
	price := in.Price
	if price <= 0 {
		return nil, fmt.Errorf("levels: non-positive price")
	}
	if atr/price > stopPctMax {
		return nil, fmt.Errorf("levels: ATR %.2f%% of price exceeds stop bound", atr/price*100)
	}

	stop := chooseStop(in, atr)
	entry := chooseEntry(in, atr)
	tps, trailing := takeProfits(in, atr)

	rr := model.RiskReward{
		Ratio:       (tps[0].Price - price) / (price - stop.Price),
		RiskPct:     p.RiskPct,
		PositionUSD: p.AccountUSD * p.RiskPct / (stop.Pct / 100),
	}

	return &model.Levels{
		Price:      price,
		ATR:        atr,
		ATRPct:     atr / price * 100,
		Stop:       stop,
		Entry:      entry,
		TPs:        tps,
		Trailing:   trailing,
		RiskReward: rr,
		Quality:    in.Quality,
	}, nil
}

// chooseStop collects the three candidate stops, keeps those at least one
// ATR below price with a bounded distance, and picks the lowest price.
func chooseStop(in Inputs, atr float64) model.Stop {
	price := in.Price

	atrMult := 2.0
	switch {
	case in.Quality == model.QualityLow:
		atrMult = 1.5
	case in.CascadeRatio >= 5:
		atrMult = 2.5
	}
	cands := []candidate{{price - atrMult*atr, model.StopMethodATR}}

	if swing, ok := feature.SwingLow(in.Candles, 24); ok {
		cands = append(cands, candidate{swing - 0.25*atr, model.StopMethodSwing})
	}

	clusters := feature.BidClusters(in.Book, price, 0.15, 0.005)
	if big, ok := feature.LargestCluster(clusters); ok && big.USD >= 0.5*feature.MedianUSD(clusters) {
		cands = append(cands, candidate{big.Price - 0.1*atr, model.StopMethodBook})
	}

	chosen := candidate{}
	for _, c := range cands {
		pct := (price - c.price) / price
		if price-c.price < atr || pct < stopPctMin || pct > stopPctMax {
			continue
		}
		if chosen.method == "" || c.price < chosen.price {
			chosen = c
		}
	}
	if chosen.method == "" {
		// No candidate inside bounds: clamp the ATR stop in.
		pct := clampF(atrMult*atr/price, math.Max(stopPctMin, atr/price), stopPctMax)
		chosen = candidate{price * (1 - pct), model.StopMethodATR}
	}

	return model.Stop{
		Price:  chosen.price,
		Pct:    (price - chosen.price) / price * 100,
		Method: chosen.method,
	}
}

func chooseEntry(in Inputs, atr float64) model.Entry {
	price := in.Price
	switch in.Classification {
	case model.ClassCritical:
		return model.Entry{Low: price * 0.998, High: price * 1.004, Ideal: price, Method: "momentum"}
	case model.ClassHighAlert:
		low := price * 0.985
		if vwap, ok := feature.VWAP(in.Candles, 24); ok && vwap > low {
			low = vwap
		}
		high := price * 0.995
		if low > high {
			low = high
		}
		return model.Entry{Low: low, High: high, Ideal: (low + high) / 2, Method: "vwap_pullback"}
	default:
		low := price * 0.985
		if swing, ok := feature.SwingLow(in.Candles, 24); ok {
			low = swing
		}
		return model.Entry{Low: low, High: low + 0.25*atr, Ideal: low, Method: "swing_retest"}
	}
}

// takeProfits lays the ATR ladder, stretched by the cascade ratio and
// snapped under ask walls when one sits in the way.
func takeProfits(in Inputs, atr float64) ([]model.TakeProfit, model.Trailing) {
	price := in.Price
	k := clampF(1+0.1*(in.CascadeRatio-3), 1.0, 1.8)
	multiples := []float64{3.0, 5.5, 9.0}
	walls := feature.AskClusters(in.Book, price, 0.50, 0.005)

	tps := make([]model.TakeProfit, 0, 3)
	floor := price
	for i, m := range multiples {
		raw := price + m*k*atr
		tp := snapToWall(raw, price, floor, walls)
		tps = append(tps, model.TakeProfit{
			Level:   i + 1,
			Price:   tp,
			Pct:     (tp/price - 1) * 100,
			SellPct: 25,
			Method:  "atr_ladder",
		})
		floor = tp
	}
	trailing := model.Trailing{Pct: 2 * atr / price * 100, SellPct: 25}
	return tps, trailing
}

// snapToWall moves a raw TP to 0.2% below the nearest ask cluster under it,
// refusing snaps that fall more than 15% below the raw level or break the
// ladder ordering.
func snapToWall(raw, price, floor float64, walls []feature.Cluster) float64 {
	var nearest float64
	for _, w := range walls {
		if w.Price > price && w.Price <= raw && w.Price > nearest {
			nearest = w.Price
		}
	}
	if nearest == 0 {
		return raw
	}
	snapped := nearest * 0.998
	if snapped < raw*0.85 || snapped <= floor {
		return raw
	}
	return snapped
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
