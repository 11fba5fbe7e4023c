// Package signal turns feature bundles into the nine normalized component
// scores of the composite.
package signal

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"PumpSentinel/internal/feature"
	"PumpSentinel/internal/model"
)

// Inputs is the per-symbol feature bundle shared by all evaluators.
type Inputs struct {
	Symbol  string
	Now     int64 // milliseconds
	Price   float64
	Candles []model.Candle
	OI      []model.OIPoint
	Funding []model.FundingPoint
	LS      []model.LSPoint
	Ticker  model.Ticker
	Book    model.OrderBook // merged across exchanges, latest snapshot
	Gapped  bool            // candle series has a gap beyond max_gap_hours
}

// candleQuality grades candle coverage for a lookback and demotes to LOW
// when the series is gapped.
func (in Inputs) candleQuality(need int) model.Quality {
	q := feature.SeriesQuality(len(in.Candles), need)
	if in.Gapped {
		return model.QualityLow
	}
	return q
}

// Evaluator is one named signal function.
type Evaluator struct {
	Name string
	Fn   func(Inputs) model.Signal
}

// Evaluators lists all nine signals in weight order.
var Evaluators = []Evaluator{
	{model.SignalOISurge, evalOISurge},
	{model.SignalFunding, evalFunding},
	{model.SignalLiqLeverage, evalLiqLeverage},
	{model.SignalCrossExVolume, evalCrossExchange},
	{model.SignalDepth, evalDepthImbalance},
	{model.SignalDecouple, evalDecouple},
	{model.SignalVolCompress, evalCompression},
	{model.SignalLSRatio, evalLongShort},
	{model.SignalFutVolDiverge, evalFuturesVolume},
}

// EvaluateAll runs every evaluator, recovering from panics. A crashed
// evaluator is logged and contributes score 0 at LOW quality.
func EvaluateAll(log zerolog.Logger, in Inputs) []model.Signal {
	out := make([]model.Signal, 0, len(Evaluators))
	for _, ev := range Evaluators {
		out = append(out, runOne(log, ev, in))
	}
	return out
}

func runOne(log zerolog.Logger, ev Evaluator, in Inputs) (sig model.Signal) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("symbol", in.Symbol).Str("signal", ev.Name).
				Interface("panic", r).Msg("evaluator crashed")
			sig = model.Signal{Name: ev.Name, Score: 0, Quality: model.QualityLow}
		}
	}()
	return ev.Fn(in)
}

// oiTotalAt returns the total OI of the newest point at or before target,
// falling back to the oldest point, plus that point's timestamp.
func oiTotalAt(points []model.OIPoint, target int64) (float64, int64, bool) {
	if len(points) == 0 {
		return 0, 0, false
	}
	best := points[0]
	for _, p := range points {
		if p.T <= target && p.T >= best.T {
			best = p
		}
	}
	return best.Total(), best.T, true
}

func evalOISurge(in Inputs) model.Signal {
	name := model.SignalOISurge
	if len(in.OI) < 2 {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}
	now := in.OI[len(in.OI)-1]
	target := in.Now - 72*3_600_000
	then, thenT, _ := oiTotalAt(in.OI, target)
	if then <= 0 {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}
	raw := (now.Total() - then) / then
	score := oiSurgeCurve.Eval(raw)

	if move, ok := feature.ReturnOver(in.Candles, 72); ok {
		damp := math.Max(0, 1-10*math.Max(0, math.Abs(move)-0.02))
		score *= damp
	}

	spanH := float64(now.T-thenT) / 3_600_000
	q := model.QualityHigh
	switch {
	case spanH < 36:
		q = model.QualityLow
	case spanH < 66:
		q = model.QualityMed
	}
	return model.Signal{Name: name, Score: clamp(score, 0, 100), Raw: raw, Quality: q}
}

func evalFunding(in Inputs) model.Signal {
	name := model.SignalFunding
	if len(in.Funding) == 0 {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}

	var sum24 float64
	var n24 int
	cut24 := in.Now - 24*3_600_000
	var neg72, n72 int
	cut72 := in.Now - 72*3_600_000
	for _, p := range in.Funding {
		m, ok := p.Mean()
		if !ok {
			continue
		}
		if p.T >= cut24 {
			sum24 += m
			n24++
		}
		if p.T >= cut72 {
			n72++
			if m < 0 {
				neg72++
			}
		}
	}
	if n24 == 0 || n72 == 0 {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}

	mean24 := sum24 / float64(n24)
	var magnitude float64
	if mean24 < 0 {
		magnitude = fundingMagnitudeCurve.Eval(-mean24)
	}
	persistence := fundingPersistenceCurve.Eval(float64(neg72) / float64(n72))
	score := 0.55*magnitude + 0.45*persistence

	// Funding settles every 8h: 9 periods cover 72h.
	q := feature.SeriesQuality(n72, 9)
	return model.Signal{Name: name, Score: clamp(score, 0, 100), Raw: mean24, Quality: q}
}

func evalLiqLeverage(in Inputs) model.Signal {
	name := model.SignalLiqLeverage
	if len(in.OI) == 0 || len(in.LS) == 0 {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}
	ratio, ok := in.LS[len(in.LS)-1].Mean()
	if !ok || ratio < 0 {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}
	oiTotal := in.OI[len(in.OI)-1].Total()
	shortNotional := oiTotal * (1 / (1 + ratio))
	// Short entries are not observable; assume at most 80% of short
	// notional liquidates within +15% of price.
	liq15 := shortNotional * math.Min(0.15*8, 0.8)

	askUSD := feature.TotalUSD(feature.AskClusters(in.Book, in.Price, 0.15, 0.005))
	if askUSD <= 0 {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}
	raw := liq15 / askUSD
	return model.Signal{Name: name, Score: liqLeverageCurve.Eval(raw), Raw: raw, Quality: model.QualityHigh}
}

func evalCrossExchange(in Inputs) model.Signal {
	name := model.SignalCrossExVolume
	if len(in.Ticker.PerExchange) >= 2 {
		vols := make([]float64, 0, len(in.Ticker.PerExchange))
		for _, t := range in.Ticker.PerExchange {
			vols = append(vols, t.QuoteVol)
		}
		sort.Float64s(vols)
		median := vols[len(vols)/2]
		if len(vols)%2 == 0 {
			median = (vols[len(vols)/2-1] + vols[len(vols)/2]) / 2
		}
		if median <= 0 {
			return model.Signal{Name: name, Quality: model.QualityLow}
		}
		raw := vols[len(vols)-1] / median
		return model.Signal{Name: name, Score: crossExchangeCurve.Eval(raw), Raw: raw, Quality: model.QualityHigh}
	}

	// Single venue: compare current 24h volume with the 7d daily average.
	cur, ok1 := feature.WindowVolume(in.Candles, 24, 0)
	week, ok2 := feature.WindowVolume(in.Candles, 168, 0)
	if !ok1 || !ok2 || week == 0 {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}
	raw := cur / (week / 7)
	return model.Signal{Name: name, Score: crossExchangeCurve.Eval(raw), Raw: raw, Quality: in.candleQuality(168)}
}

func evalDepthImbalance(in Inputs) model.Signal {
	name := model.SignalDepth
	bidUSD, askUSD := feature.DepthUSD(in.Book, in.Price, 0.10)
	if askUSD <= 0 {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}
	raw := bidUSD / askUSD
	return model.Signal{Name: name, Score: depthImbalanceCurve.Eval(raw), Raw: raw, Quality: model.QualityHigh}
}

func evalDecouple(in Inputs) model.Signal {
	name := model.SignalDecouple
	cur, ok1 := feature.WindowVolume(in.Candles, 24, 0)
	prev, ok2 := feature.WindowVolume(in.Candles, 24, 24)
	if !ok1 || !ok2 || prev == 0 {
		return model.Signal{Name: name, Quality: in.candleQuality(48)}
	}
	raw := cur/prev - 1
	score := decoupleCurve.Eval(raw)
	if ret, ok := feature.ReturnOver(in.Candles, 24); ok {
		score *= math.Max(0, 1-12*math.Max(0, math.Abs(ret)-0.02))
	}
	return model.Signal{Name: name, Score: clamp(score, 0, 100), Raw: raw, Quality: in.candleQuality(48)}
}

func evalCompression(in Inputs) model.Signal {
	name := model.SignalVolCompress
	bbw := feature.BBWSeries(in.Candles, 20)
	if len(bbw) < 2 {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}
	current := bbw[len(bbw)-1]
	raw := 1 - feature.PercentileRank(bbw, current)
	return model.Signal{Name: name, Score: compressionCurve.Eval(raw), Raw: raw, Quality: in.candleQuality(120)}
}

func evalLongShort(in Inputs) model.Signal {
	name := model.SignalLSRatio
	if len(in.LS) == 0 {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}
	ratio, ok := in.LS[len(in.LS)-1].Mean()
	if !ok {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}
	return model.Signal{Name: name, Score: longShortCurve.Eval(ratio), Raw: ratio, Quality: feature.SeriesQuality(len(in.LS), 10)}
}

func evalFuturesVolume(in Inputs) model.Signal {
	name := model.SignalFutVolDiverge
	if len(in.Candles) < 72 {
		return model.Signal{Name: name, Quality: in.candleQuality(72)}
	}
	now := in.Candles[len(in.Candles)-1].Volume
	mean, ok := feature.WindowVolume(in.Candles, 72, 0)
	if !ok || mean == 0 {
		return model.Signal{Name: name, Quality: model.QualityLow}
	}
	raw := now / (mean / 72)
	return model.Signal{Name: name, Score: futuresVolumeCurve.Eval(raw), Raw: raw, Quality: in.candleQuality(72)}
}

// AggregateQuality is the minimum quality across signals.
func AggregateQuality(signals []model.Signal) model.Quality {
	q := model.QualityHigh
	for _, s := range signals {
		q = model.MinQuality(q, s.Quality)
	}
	return q
}
